package model

// TokenMeta captures ERC20 metadata for a token id that is a contract address.
type TokenMeta struct {
	Token    string `json:"token"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

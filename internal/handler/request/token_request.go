package request

import "wallet-vault/internal/model"

// AddTokenRequest 手动添加代币。地址等字段的校验在 token 服务中完成，
// 以便返回 ErrInvalidAddressFormat / ErrMissingRequiredField 而不是笼统的绑定错误。
type AddTokenRequest struct {
	ContractAddress string `json:"contract_address"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Decimals        int    `json:"decimals"`
	NetworkLabel    string `json:"network_label"`
}

func (r AddTokenRequest) Record() model.TokenRecord {
	return model.TokenRecord{
		ContractAddress: r.ContractAddress,
		Name:            r.Name,
		Symbol:          r.Symbol,
		Decimals:        r.Decimals,
		NetworkLabel:    r.NetworkLabel,
	}
}

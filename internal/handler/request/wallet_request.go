package request

// UnlockRequest 解锁并建立会话
type UnlockRequest struct {
	Password   string `json:"password" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds" binding:"gte=0"`
}

// ExtendRequest 延长会话
type ExtendRequest struct {
	TTLSeconds int `json:"ttl_seconds" binding:"required,gt=0"`
}

// GenerateWalletRequest 生成新钱包，Words 为 12 或 24
type GenerateWalletRequest struct {
	Alias string `json:"alias"`
	Words int    `json:"words" binding:"omitempty,oneof=12 24"`
}

// ImportWalletRequest 从私钥或助记词导入，二者恰好提供一个
type ImportWalletRequest struct {
	PrivateKey string `json:"private_key" binding:"required_without=Mnemonic"`
	Mnemonic   string `json:"mnemonic" binding:"required_without=PrivateKey"`
	Index      uint32 `json:"index"`
	Alias      string `json:"alias"`
}

type RenameWalletRequest struct {
	Alias string `json:"alias" binding:"required"`
}

type SetActiveRequest struct {
	ID string `json:"id" binding:"required"`
}

// DiscoverRequest 对一个或多个助记词执行账户发现
type DiscoverRequest struct {
	Mnemonics []string `json:"mnemonics" binding:"required,min=1,max=10"`
}

// ImportDiscoveredRequest 把发现结果中选中的索引导入金库
type ImportDiscoveredRequest struct {
	Mnemonic string   `json:"mnemonic" binding:"required"`
	Indexes  []uint32 `json:"indexes" binding:"required,min=1"`
}

// DestroyRequest 删除全部数据需要显式确认
type DestroyRequest struct {
	Confirm bool `json:"confirm"`
}

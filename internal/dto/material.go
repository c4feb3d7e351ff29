package dto

// MaterialQuery filters the catalogue lookup used when building pools.
type MaterialQuery struct {
	ChannelID string `form:"channelId"`
	Kind      string `form:"kind" validate:"omitempty,oneof=C I G 9"`
	Date      string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	Search    string `form:"q"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

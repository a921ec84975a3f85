package series

type ListSeriesQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" validate:"min=0,max=500"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=200"`
}

type CreateSeriesPayload struct {
	Name string `json:"name" mod:"trim" validate:"required,max=200"`
}

type UpdateSeriesPayload struct {
	Name string `json:"name" mod:"trim" validate:"required,max=200"`
}

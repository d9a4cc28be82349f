package dto

// CreateHallRequest registers a physical hall.
type CreateHallRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
	Location string `json:"location" validate:"required,max=255"`
}

// UpdateHallRequest changes hall attributes. Omitted fields are left untouched.
type UpdateHallRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1"`
	Location *string `json:"location" validate:"omitempty,min=1,max=255"`
}

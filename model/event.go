package model

import "time"

type CreateEventRequest struct {
	Name           string    `json:"name" validate:"required,max=150"`
	Description    string    `json:"description" validate:"required"`
	Content        string    `json:"content" validate:"omitempty"`
	CategoryID     int64     `json:"category_id" validate:"required"`
	CityID         int64     `json:"city_id" validate:"required"`
	LocationDetail string    `json:"location_detail" validate:"required,max=255"`
	StartEvent     time.Time `json:"start_event" validate:"required"`
	EndEvent       time.Time `json:"end_event" validate:"required"`
}

type CreateEventResponse struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type CreateSeatRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=255"`
	Price       int64  `json:"price" validate:"min=0"`
	TotalSeat   int32  `json:"total_seat" validate:"required,min=1"`
}

type SeatResponse struct {
	Id        int64  `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	TotalSeat int32  `json:"total_seat"`
	Reserved  int32  `json:"reserved"`
}

type CreateVoucherRequest struct {
	Description string    `json:"description" validate:"omitempty,max=255"`
	Quota       int32     `json:"quota" validate:"required,min=1"`
	Value       int64     `json:"value" validate:"required,min=1"`
	ValidAt     time.Time `json:"valid_at" validate:"required"`
	ExpiredAt   time.Time `json:"expired_at" validate:"required"`
}

type CreateVoucherResponse struct {
	Id        int64  `json:"id"`
	Code      string `json:"code"`
	Value     int64  `json:"value"`
	Quota     int32  `json:"quota"`
	ValidAt   string `json:"valid_at"`
	ExpiredAt string `json:"expired_at"`
}

type EventResponse struct {
	Id             int64  `json:"id"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	LocationDetail string `json:"location_detail"`
	StartEvent     string `json:"start_event"`
	EndEvent       string `json:"end_event"`
	CityName       string `json:"city_name,omitempty"`
	CategoryName   string `json:"category_name,omitempty"`
}

type EventDetailResponse struct {
	EventResponse
	Description string         `json:"description"`
	Content     string         `json:"content,omitempty"`
	Seats       []SeatResponse `json:"seats"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
	Meta   PageMeta        `json:"meta"`
}

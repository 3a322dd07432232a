package model

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type PageMeta struct {
	Page  int32 `json:"page"`
	Take  int32 `json:"take"`
	Total int64 `json:"total"`
}

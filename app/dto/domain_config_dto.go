package dto

// DomainConfigRequest creates or replaces a white-label config
type DomainConfigRequest struct {
	Domain string         `json:"domain" validate:"required,min=1,max=100,hostname_rfc1123" example:"acme"`
	Config map[string]any `json:"config" validate:"required"`
}

// UpdateDomainConfigRequest patches a white-label config
type UpdateDomainConfigRequest struct {
	Domain *string        `json:"domain,omitempty" validate:"omitempty,min=1,max=100,hostname_rfc1123" example:"acme"`
	Config map[string]any `json:"config,omitempty"`
}

// DomainConfigResponse is a white-label config
type DomainConfigResponse struct {
	ID     uint           `json:"id" example:"1"`
	Domain string         `json:"domain" example:"acme"`
	Config map[string]any `json:"config"`
}

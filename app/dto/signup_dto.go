package dto

// SignupRequest represents the request payload for account creation
type SignupRequest struct {
	Email       string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password    string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
	FirstName   string `json:"first_name" validate:"required,max=150" example:"John"`
	LastName    string `json:"last_name" validate:"required,max=150" example:"Doe"`
	Company     string `json:"company,omitempty" validate:"omitempty,max=255" example:"Acme"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,max=30" example:"+15555550100"`
}

package dto

// UpdateProfileRequest changes the caller's own profile fields
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=150" example:"John"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=150" example:"Doe"`
	Company     *string `json:"company,omitempty" validate:"omitempty,max=255" example:"Acme"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=30" example:"+15555550100"`
}

// DeviceTokenRequest registers a push token for the caller
type DeviceTokenRequest struct {
	Token    string `json:"token" validate:"required,max=512" example:"fcm:APA91bH..."`
	Platform string `json:"platform" validate:"required,oneof=ios android web" example:"ios"`
}

// DeviceTokenResponse is a registered push token
type DeviceTokenResponse struct {
	Token    string `json:"token" example:"fcm:APA91bH..."`
	Platform string `json:"platform" example:"ios"`
}

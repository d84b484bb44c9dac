package models

// DefaultWelcomeText is shown on the login screen until an admin changes it.
const DefaultWelcomeText = "Welcome to CRM System. Please login to continue."

// Dashboard is the admin-owned login screen configuration.
type Dashboard struct {
	WelcomeText    string  `json:"text"`
	ImageReference *string `json:"image_path"`
}

package response_models

import "habitloop/internal/billing"

type AccountLoginResponse struct {
	Token       string       `json:"token"`
	CurrentTier billing.Tier `json:"current_tier"`
}

type AccountResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

package request_models

type CheckoutRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

type ActivatePlanRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

type UsageQuery struct {
	RoutineID string `form:"routine_id" binding:"omitempty,uuid"`
}

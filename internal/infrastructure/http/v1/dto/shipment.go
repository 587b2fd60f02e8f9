package dto

// AssignCarrierRequest sets the delivering carrier on a pending shipment.
type AssignCarrierRequest struct {
	CarrierID string `json:"carrierId" binding:"required"`
}

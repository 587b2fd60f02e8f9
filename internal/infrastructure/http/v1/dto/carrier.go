package dto

import (
	"stockpilot/internal/domain/catalogs/carrier"
)

// --- Request DTOs ---

// CreateCarrierRequest is the request body for creating a carrier.
type CreateCarrierRequest struct {
	Code                string  `json:"code"`
	Name                string  `json:"name" binding:"required"`
	ContactPhone        *string `json:"contactPhone"`
	ContactEmail        *string `json:"contactEmail"`
	TrackingURLTemplate *string `json:"trackingUrlTemplate"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateCarrierRequest) ToEntity() *carrier.Carrier {
	c := carrier.NewCarrier(r.Code, r.Name)
	c.ContactPhone = r.ContactPhone
	c.ContactEmail = r.ContactEmail
	c.TrackingURLTemplate = r.TrackingURLTemplate
	return c
}

// UpdateCarrierRequest is the request body for updating a carrier.
type UpdateCarrierRequest struct {
	Code                string  `json:"code"`
	Name                string  `json:"name" binding:"required"`
	IsActive            bool    `json:"isActive"`
	ContactPhone        *string `json:"contactPhone,omitempty"`
	ContactEmail        *string `json:"contactEmail,omitempty"`
	TrackingURLTemplate *string `json:"trackingUrlTemplate,omitempty"`
	Version             int     `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateCarrierRequest) ApplyTo(c *carrier.Carrier) {
	c.Code = r.Code
	c.Name = r.Name
	c.IsActive = r.IsActive
	c.ContactPhone = r.ContactPhone
	c.ContactEmail = r.ContactEmail
	c.TrackingURLTemplate = r.TrackingURLTemplate
	c.Version = r.Version
}

// --- Response DTOs ---

// CarrierResponse is the response body for a carrier.
type CarrierResponse struct {
	ID                  string  `json:"id"`
	Code                string  `json:"code"`
	Name                string  `json:"name"`
	IsActive            bool    `json:"isActive"`
	ContactPhone        *string `json:"contactPhone,omitempty"`
	ContactEmail        *string `json:"contactEmail,omitempty"`
	TrackingURLTemplate *string `json:"trackingUrlTemplate,omitempty"`
	DeletionMark        bool    `json:"deletionMark"`
	Version             int     `json:"version"`
}

// FromCarrier creates response DTO from domain entity.
func FromCarrier(c *carrier.Carrier) *CarrierResponse {
	return &CarrierResponse{
		ID:                  c.ID.String(),
		Code:                c.Code,
		Name:                c.Name,
		IsActive:            c.IsActive,
		ContactPhone:        c.ContactPhone,
		ContactEmail:        c.ContactEmail,
		TrackingURLTemplate: c.TrackingURLTemplate,
		DeletionMark:        c.DeletionMark,
		Version:             c.Version,
	}
}

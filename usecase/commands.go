package usecase

import "github.com/goliatone/go-manufacture/part"

// NewCommand opens a batch for a profile and production action.
type NewCommand struct {
	Profile  string `json:"profile" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Complete string `json:"complete" validate:"omitempty,oneof=nothing stocks wildberries_fbo wildberries_fbs"`
	Fixed    string `json:"fixed,omitempty"`
	Comment  string `json:"comment,omitempty" validate:"max=1024"`
}

// EditCommand replaces the descriptive fields of a batch.
type EditCommand struct {
	Event    string `json:"event" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Complete string `json:"complete" validate:"omitempty,oneof=nothing stocks wildberries_fbo wildberries_fbs"`
	Fixed    string `json:"fixed,omitempty"`
	Comment  string `json:"comment,omitempty" validate:"max=1024"`
}

// AddProductCommand adds units of a SKU to the open batch of a profile.
// Invariable, when set, is locked to the batch.
type AddProductCommand struct {
	Profile      string `json:"profile" validate:"required"`
	Action       string `json:"action" validate:"required"`
	Product      string `json:"product" validate:"required"`
	Offer        string `json:"offer,omitempty"`
	Variation    string `json:"variation,omitempty" validate:"required_with=Modification"`
	Modification string `json:"modification,omitempty"`
	Total        int    `json:"total" validate:"gt=0"`
	Invariable   string `json:"invariable,omitempty"`
	Kind         string `json:"type,omitempty"`
}

func (c AddProductCommand) SKU() part.SKU {
	return part.SKU{
		Product:      c.Product,
		Offer:        c.Offer,
		Variation:    c.Variation,
		Modification: c.Modification,
	}
}

// ActionCommand records a finished working stage of a batch.
type ActionCommand struct {
	Event   string `json:"event" validate:"required"`
	Stage   string `json:"stage" validate:"required"`
	Profile string `json:"profile" validate:"required"`
}

// PackageCommand hands an open batch over to production.
type PackageCommand struct {
	Event string `json:"event" validate:"required"`
}

// DefectCommand moves Total units of a line to defect. Event names the
// version whose working stage is blamed; empty means a raw material defect.
type DefectCommand struct {
	Part    string `json:"part" validate:"required"`
	Product string `json:"product" validate:"required"`
	Total   int    `json:"total" validate:"gt=0"`
	Event   string `json:"event,omitempty"`
}

type CompleteCommand struct {
	Event string `json:"event" validate:"required"`
}

type CloseCommand struct {
	Event string `json:"event" validate:"required"`
}

type DeleteCommand struct {
	Part string `json:"part" validate:"required"`
}

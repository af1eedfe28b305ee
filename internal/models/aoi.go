package models

// ParameterUsage is the direction of an AOI parameter.
type ParameterUsage string

const (
	ParameterInput  ParameterUsage = "Input"
	ParameterOutput ParameterUsage = "Output"
	ParameterInOut  ParameterUsage = "InOut"
)

// AOI is an add-on instruction definition.
type AOI struct {
	Name        string         `json:"name" msgpack:"name"`
	Revision    string         `json:"revision" msgpack:"revision"`
	Vendor      *string        `json:"vendor" msgpack:"vendor"`
	Description *string        `json:"description" msgpack:"description"`
	Parameters  []AOIParameter `json:"parameters" msgpack:"parameters"`
}

// AOIParameter is a declared AOI parameter, kept in declaration order.
type AOIParameter struct {
	Name           string         `json:"name" msgpack:"name"`
	DataType       string         `json:"dataType" msgpack:"dataType"`
	Usage          ParameterUsage `json:"usage" msgpack:"usage"`
	Required       bool           `json:"required" msgpack:"required"`
	Visible        bool           `json:"visible" msgpack:"visible"`
	Description    *string        `json:"description" msgpack:"description"`
	ExternalAccess *string        `json:"externalAccess,omitempty" msgpack:"externalAccess"`
}

// IsImplicit reports whether the parameter is one of the EnableIn/EnableOut
// parameters every AOI carries.
func (p AOIParameter) IsImplicit() bool {
	return p.Name == "EnableIn" || p.Name == "EnableOut"
}

// CallOperands returns the parameters that appear as operands when the AOI is
// called from ladder logic, in order. Operand 0 of a call is the instance tag
// and is not part of this list.
func (a AOI) CallOperands() []AOIParameter {
	var out []AOIParameter
	for _, p := range a.Parameters {
		if p.IsImplicit() {
			continue
		}
		if p.Required || p.Usage == ParameterInOut {
			out = append(out, p)
		}
	}
	return out
}

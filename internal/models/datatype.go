package models

// UDT is a user-defined composite data type.
// Member order is significant: it defines the memory layout.
type UDT struct {
	Name        string      `json:"name" msgpack:"name"`
	Family      *string     `json:"family,omitempty" msgpack:"family"`
	Description *string     `json:"description" msgpack:"description"`
	Members     []UDTMember `json:"members" msgpack:"members"`
}

// UDTMember is one field of a UDT.
type UDTMember struct {
	Name        string  `json:"name" msgpack:"name"`
	DataType    string  `json:"dataType" msgpack:"dataType"`
	Dimension   *int    `json:"dimension" msgpack:"dimension"`
	Description *string `json:"description" msgpack:"description"`
	Hidden      bool    `json:"hidden,omitempty" msgpack:"hidden"` // compiler generated bit host
}

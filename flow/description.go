package flow

import "github.com/c360/flowkit/options"

// PortDescription names one port (or one array of ports) of a described
// node type. An ArraySize greater than zero declares an array port: the
// entry covers ArraySize consecutive port indexes starting at BasePortIdx
// and members address as "name[i]".
type PortDescription struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type,omitempty"`
	ArraySize   uint16 `json:"array_size,omitempty"`
	BasePortIdx uint16 `json:"base_port_idx"`
	Required    bool   `json:"required,omitempty"`
}

// Description is the optional human-readable metadata of a node type. Types
// without one cannot be resolved by name or exported through the type
// description dump.
type Description struct {
	Name        string               `json:"name"`
	Category    string               `json:"category,omitempty"`
	Description string               `json:"description,omitempty"`
	Author      string               `json:"author,omitempty"`
	URL         string               `json:"url,omitempty"`
	License     string               `json:"license,omitempty"`
	Version     string               `json:"version,omitempty"`
	PortsIn     []*PortDescription   `json:"in_ports,omitempty"`
	PortsOut    []*PortDescription   `json:"out_ports,omitempty"`
	Options     *options.Description `json:"-"`
}

// FindPortIn resolves an input port name to its description. Array members
// are found by their base name, not the indexed "name[i]" form.
func (d *Description) FindPortIn(name string) *PortDescription {
	return findPort(d.PortsIn, name)
}

// FindPortOut resolves an output port name to its description.
func (d *Description) FindPortOut(name string) *PortDescription {
	return findPort(d.PortsOut, name)
}

func findPort(ports []*PortDescription, name string) *PortDescription {
	for _, p := range ports {
		if p.Name == name {
			return p
		}
	}
	return nil
}

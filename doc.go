// Package flowkit is a dataflow programming runtime: programs are graphs
// of small typed nodes exchanging immutable packets over directed
// connections, and a scheduler drives them cooperatively on a single
// goroutine.
//
// # Architecture
//
// The runtime splits into a node ABI, a container that wires graphs, and
// the facilities around them:
//
//	┌─────────────────────────────────────┐
//	│           staticflow                │  Graph container: children,
//	│  (wiring, dispatch, exported ports) │  connection table, lifecycle
//	└─────────────────────────────────────┘
//	           ↓ instantiates
//	┌─────────────────────────────────────┐
//	│              flow                   │  Node types, ports, the
//	│   (NodeType, Node, Port, send)      │  send/deliver contract
//	└─────────────────────────────────────┘
//	           ↓ carry
//	┌─────────────────────────────────────┐
//	│          packet / blob              │  Immutable typed packets,
//	│    (typed payloads, refcounts)      │  reference-counted buffers
//	└─────────────────────────────────────┘
//
// A node type declares its input and output ports with their packet
// types; instances are opened with options and communicate only through
// packets. SendPacket transfers packet ownership to the runtime, which
// delivers one reference per connected destination and drops the last
// reference when every leg has run.
//
// # Framework Packages
//
// Core runtime:
//   - flow: node-type ABI, node lifecycle, ports, packet send/deliver
//   - staticflow: static graph container with exported ports and options
//   - packet: typed immutable packets and the packet type system
//   - blob: reference-counted byte buffers with parent chains
//   - types: value types carried by packets (ranges, RGB, location)
//   - options: node options, schema-described option bags
//
// Assembly and resolution:
//   - builder: incremental flow construction with by-name connections
//   - resolver: node-type identifier resolution, YAML conffile aliases
//   - registry: built-in type catalog and plugin module loading
//
// Infrastructure:
//   - mainloop: cooperative scheduler (timers, idlers, workers)
//   - metric: Prometheus metrics registry and HTTP exposition
//   - inspect: runtime tracing and metrics inspectors
//   - errors: structured error handling
//
// Tooling:
//   - cmd/flowkit-nodetypes: JSON dump of registered node-type descriptions
//
// # Usage
//
// Building and running a flow:
//
//	b := builder.New()
//	b.AddNodeByID("src", "timer", nil)
//	b.AddNodeByID("dst", "console", nil)
//	b.Connect("src", "OUT", -1, "dst", "IN", -1)
//
//	typ, err := b.GetNodeType()
//	if err != nil {
//	    return err
//	}
//	node, err := flow.NewNode(nil, "main", typ, nil)
//	if err != nil {
//	    return err
//	}
//	defer node.Del()
//
// Custom node type:
//
//	type toggleType struct {
//	    flow.TypeBase
//	}
//
//	func (t *toggleType) PortIn(port uint16) *flow.PortIn {
//	    return &flow.PortIn{
//	        APIVersion: flow.PortAPIVersion,
//	        PacketType: packet.TypeBoolean,
//	        Process: func(n *flow.Node, data flow.NodeData, port, connID uint16, pkt *packet.Packet) error {
//	            v, err := pkt.Boolean()
//	            if err != nil {
//	                return err
//	            }
//	            pkt.Del()
//	            return n.SendBoolean(0, !v)
//	        },
//	    }
//	}
//
// # Design Principles
//
// Single-goroutine execution:
//   - Nodes never need locks; the runtime serializes all processing
//   - Blocking work goes through mainloop workers, results come back
//     via Feedback on the loop goroutine
//
// Explicit ownership:
//   - Packets and blobs are reference counted; a send transfers the
//     caller's reference to the runtime
//   - Instances own their children and tear them down in reverse order
//
// Observability stays out of the hot path:
//   - The dispatch loop carries no metrics or logging of its own
//   - Install an inspect.Tracer or inspect.MetricsInspector to observe
//     lifecycle, connection and packet events
package flowkit

package docparser

import (
	"fmt"
	"strconv"

	"github.com/flowweaver/fw/annotation"
	"github.com/flowweaver/fw/model"
)

// parseNodeTag parses one `@node` line:
//
//	@node <id> <typeName> [parentScope] [label:"…"] [portOrder:p=n,…]
//	      [portLabel:p="…",…] [expr:p="…",…] [pullExecution:port]
//	      [minimized] [color:"…"] [icon:"…"] [tags:"l" "t",…]
//	      [size:w h] [position:x y]
func parseNodeTag(body string) (*model.NodeInstance, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(toks) < 2 {
		return nil, fmt.Errorf("@node requires an id and a type name")
	}
	inst := &model.NodeInstance{ID: toks[0].Text, NodeType: toks[1].Text}

	i := 2
	portConfig := func(name string) *model.PortConfig {
		if pc := inst.Config.PortConfigFor(name); pc != nil {
			return pc
		}
		inst.Config.PortConfigs = append(inst.Config.PortConfigs, model.PortConfig{PortName: name})
		return &inst.Config.PortConfigs[len(inst.Config.PortConfigs)-1]
	}

	for i < len(toks) {
		t := toks[i]
		if t.Kind != annotation.TokenWord {
			i++
			continue
		}
		// parentScope: "parentId.scopeName" with no colon following.
		if i+2 < len(toks) && toks[i+1].Kind == annotation.TokenDot && toks[i+2].Kind == annotation.TokenWord {
			inst.Parent = &model.ParentRef{ID: t.Text, Scope: toks[i+2].Text}
			i += 3
			continue
		}
		if i+1 >= len(toks) || toks[i+1].Kind != annotation.TokenColon {
			if t.Text == "minimized" {
				inst.Config.Minimized = true
			}
			i++
			continue
		}
		key := t.Text
		i += 2 // consume key + colon
		switch key {
		case "label":
			if i < len(toks) {
				inst.Config.Label = toks[i].Text
				i++
			}
		case "color":
			if i < len(toks) {
				inst.Config.Color = toks[i].Text
				i++
			}
		case "icon":
			if i < len(toks) {
				inst.Config.Icon = toks[i].Text
				i++
			}
		case "pullExecution":
			if i < len(toks) {
				inst.Config.PullExecution = toks[i].Text
				i++
			}
		case "portOrder":
			for i < len(toks) && toks[i].Kind == annotation.TokenWord {
				port := toks[i].Text
				i++
				if i < len(toks) && toks[i].Kind == annotation.TokenEquals {
					i++
				}
				if i < len(toks) {
					if n, err := strconv.Atoi(toks[i].Text); err == nil {
						portConfig(port).Order = &n
					}
					i++
				}
				if i < len(toks) && toks[i].Kind == annotation.TokenComma {
					i++
					continue
				}
				break
			}
		case "portLabel":
			for i < len(toks) && toks[i].Kind == annotation.TokenWord {
				port := toks[i].Text
				i++
				if i < len(toks) && toks[i].Kind == annotation.TokenEquals {
					i++
				}
				if i < len(toks) {
					portConfig(port).Label = toks[i].Text
					i++
				}
				if i < len(toks) && toks[i].Kind == annotation.TokenComma {
					i++
					continue
				}
				break
			}
		case "expr":
			for i < len(toks) && toks[i].Kind == annotation.TokenWord {
				port := toks[i].Text
				i++
				if i < len(toks) && toks[i].Kind == annotation.TokenEquals {
					i++
				}
				if i < len(toks) {
					portConfig(port).Expression = toks[i].Text
					i++
				}
				if i < len(toks) && toks[i].Kind == annotation.TokenComma {
					i++
					continue
				}
				break
			}
		case "tags":
			for i < len(toks) && toks[i].Kind == annotation.TokenString {
				inst.Config.Tags = append(inst.Config.Tags, toks[i].Text)
				i++
				if i < len(toks) && toks[i].Kind == annotation.TokenComma {
					i++
				}
			}
		case "size":
			if i < len(toks) {
				inst.Config.Width, _ = strconv.ParseFloat(toks[i].Text, 64)
				i++
			}
			if i < len(toks) {
				inst.Config.Height, _ = strconv.ParseFloat(toks[i].Text, 64)
				i++
			}
		case "position":
			if i < len(toks) {
				inst.Config.X, _ = strconv.ParseFloat(toks[i].Text, 64)
				i++
			}
			if i < len(toks) {
				inst.Config.Y, _ = strconv.ParseFloat(toks[i].Text, 64)
				i++
			}
		default:
			// unknown attribute key, skip its value token if present
			if i < len(toks) {
				i++
			}
		}
	}

	return inst, nil
}

// parseEndpoint reads one `node.port[:scope]` endpoint starting at toks[i],
// returning the new index.
func parseEndpoint(toks []annotation.Token, i int) (model.Endpoint, int, error) {
	var ep model.Endpoint
	if i >= len(toks) || toks[i].Kind != annotation.TokenWord {
		return ep, i, fmt.Errorf("expected node name at token %d", i)
	}
	ep.Node = toks[i].Text
	i++
	if i < len(toks) && toks[i].Kind == annotation.TokenDot {
		i++
		if i >= len(toks) || toks[i].Kind != annotation.TokenWord {
			return ep, i, fmt.Errorf("expected port name after '.'")
		}
		ep.Port = toks[i].Text
		i++
	}
	if i < len(toks) && toks[i].Kind == annotation.TokenColon {
		i++
		if i >= len(toks) || toks[i].Kind != annotation.TokenWord {
			return ep, i, fmt.Errorf("expected scope name after ':'")
		}
		ep.Scope = toks[i].Text
		i++
	}
	return ep, i, nil
}

// parseConnectTag parses `@connect a.p[:scope] -> b.q[:scope]`.
func parseConnectTag(body string) (*model.Connection, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	from, i, err := parseEndpoint(toks, 0)
	if err != nil {
		return nil, fmt.Errorf("@connect: %w", err)
	}
	if i >= len(toks) || toks[i].Kind != annotation.TokenArrow {
		return nil, fmt.Errorf("@connect: expected '->'")
	}
	i++
	to, _, err := parseEndpoint(toks, i)
	if err != nil {
		return nil, fmt.Errorf("@connect: %w", err)
	}
	return &model.Connection{From: from, To: to}, nil
}

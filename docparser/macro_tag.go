package docparser

import (
	"fmt"

	"github.com/flowweaver/fw/annotation"
	"github.com/flowweaver/fw/model"
)

// parseMapTag parses `@map instanceId childId[(in -> out)] over source.port`
//. The rename clause is optional.
func parseMapTag(body string) (*model.MapMacro, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(toks) < 4 {
		return nil, fmt.Errorf("@map requires instanceId childId over source.port")
	}
	m := &model.MapMacro{InstanceID: toks[0].Text, ChildID: toks[1].Text}
	i := 2
	if i < len(toks) && toks[i].Kind == annotation.TokenLParen {
		i++
		if i < len(toks) && toks[i].Kind == annotation.TokenWord {
			m.Rename.In = toks[i].Text
			i++
		}
		if i < len(toks) && toks[i].Kind == annotation.TokenArrow {
			i++
		}
		if i < len(toks) && toks[i].Kind == annotation.TokenWord {
			m.Rename.Out = toks[i].Text
			i++
		}
		if i < len(toks) && toks[i].Kind == annotation.TokenRParen {
			i++
		}
	}
	if i < len(toks) && toks[i].Kind == annotation.TokenWord && toks[i].Text == "over" {
		i++
	}
	src, _, err := parseEndpoint(toks, i)
	if err != nil {
		return nil, fmt.Errorf("@map: %w", err)
	}
	m.Source = src
	return m, nil
}

// parsePathTag parses `@path stepA -> stepB:route -> ... -> sn`.
func parsePathTag(body string) (*model.PathMacro, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	m := &model.PathMacro{}
	i := 0
	for i < len(toks) {
		if toks[i].Kind != annotation.TokenWord {
			i++
			continue
		}
		step := model.PathStep{Node: toks[i].Text}
		i++
		if i < len(toks) && toks[i].Kind == annotation.TokenColon {
			i++
			if i < len(toks) && toks[i].Kind == annotation.TokenWord {
				step.Route = toks[i].Text
				i++
			}
		}
		m.Steps = append(m.Steps, step)
		if i < len(toks) && toks[i].Kind == annotation.TokenArrow {
			i++
		}
	}
	if len(m.Steps) < 2 {
		return nil, fmt.Errorf("@path requires at least two steps")
	}
	return m, nil
}

// parseEndpointList reads a comma-separated list of `node[.port]` endpoints.
func parseEndpointList(toks []annotation.Token, i int) ([]model.Endpoint, int, error) {
	var out []model.Endpoint
	for {
		ep, next, err := parseEndpoint(toks, i)
		if err != nil {
			return nil, i, err
		}
		out = append(out, ep)
		i = next
		if i < len(toks) && toks[i].Kind == annotation.TokenComma {
			i++
			continue
		}
		break
	}
	return out, i, nil
}

// parseFanOutTag parses `@fanOut src.port -> t1[.p], t2[.p]`.
func parseFanOutTag(body string) (*model.FanOutMacro, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	src, i, err := parseEndpoint(toks, 0)
	if err != nil {
		return nil, fmt.Errorf("@fanOut: %w", err)
	}
	if i >= len(toks) || toks[i].Kind != annotation.TokenArrow {
		return nil, fmt.Errorf("@fanOut: expected '->'")
	}
	i++
	targets, _, err := parseEndpointList(toks, i)
	if err != nil {
		return nil, fmt.Errorf("@fanOut: %w", err)
	}
	return &model.FanOutMacro{Source: src, Targets: targets}, nil
}

// parseFanInTag parses `@fanIn s1[.p], s2[.p] -> tgt.port`.
func parseFanInTag(body string) (*model.FanInMacro, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	var arrowIdx = -1
	for idx, t := range toks {
		if t.Kind == annotation.TokenArrow {
			arrowIdx = idx
			break
		}
	}
	if arrowIdx < 0 {
		return nil, fmt.Errorf("@fanIn: expected '->'")
	}
	sources, _, err := parseEndpointList(toks[:arrowIdx], 0)
	if err != nil {
		return nil, fmt.Errorf("@fanIn: %w", err)
	}
	target, _, err := parseEndpoint(toks, arrowIdx+1)
	if err != nil {
		return nil, fmt.Errorf("@fanIn: %w", err)
	}
	return &model.FanInMacro{Sources: sources, Target: target}, nil
}

// parseCoerceTag parses `@coerce id src.p -> tgt.p as <kind>`.
func parseCoerceTag(body string) (*model.CoerceMacro, error) {
	toks, err := annotation.Tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 || toks[0].Kind != annotation.TokenWord {
		return nil, fmt.Errorf("@coerce requires an instance id")
	}
	m := &model.CoerceMacro{InstanceID: toks[0].Text}
	src, i, err := parseEndpoint(toks, 1)
	if err != nil {
		return nil, fmt.Errorf("@coerce: %w", err)
	}
	m.Source = src
	if i >= len(toks) || toks[i].Kind != annotation.TokenArrow {
		return nil, fmt.Errorf("@coerce: expected '->'")
	}
	i++
	tgt, i2, err := parseEndpoint(toks, i)
	if err != nil {
		return nil, fmt.Errorf("@coerce: %w", err)
	}
	m.Target = tgt
	i = i2
	if i < len(toks) && toks[i].Kind == annotation.TokenWord && toks[i].Text == "as" {
		i++
	}
	if i < len(toks) && toks[i].Kind == annotation.TokenWord {
		m.Kind = model.CoerceKind(toks[i].Text)
	} else {
		return nil, fmt.Errorf("@coerce: missing target kind")
	}
	return m, nil
}

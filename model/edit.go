package model

import "fmt"

// SwapNodeInstancePortOrder exchanges the per-instance display orders of
// two ports on one instance. Ports with no explicit per-instance order get
// a PortConfig created on the fly, seeded from the node type's own order so
// the swap is observable on regeneration.
func (w *Workflow) SwapNodeInstancePortOrder(instanceID, portA, portB string) error {
	inst := w.LookupInstance(instanceID)
	if inst == nil {
		return fmt.Errorf("swap port order: instance %q not found", instanceID)
	}
	nt := w.LookupNodeType(inst.NodeType)
	if nt == nil {
		return fmt.Errorf("swap port order: instance %q has unknown node type %q", instanceID, inst.NodeType)
	}

	orderOf := func(name string) (*int, error) {
		if pc := inst.Config.PortConfigFor(name); pc != nil && pc.Order != nil {
			v := *pc.Order
			return &v, nil
		}
		if p := nt.Inputs.Get(name); p != nil && p.Order != nil {
			v := *p.Order
			return &v, nil
		}
		if p := nt.Outputs.Get(name); p != nil && p.Order != nil {
			v := *p.Order
			return &v, nil
		}
		if nt.Inputs.Has(name) || nt.Outputs.Has(name) {
			return nil, nil
		}
		return nil, fmt.Errorf("swap port order: node %q has no port %q", instanceID, name)
	}

	oa, err := orderOf(portA)
	if err != nil {
		return err
	}
	ob, err := orderOf(portB)
	if err != nil {
		return err
	}

	set := func(name string, order *int) {
		pc := inst.Config.PortConfigFor(name)
		if pc == nil {
			inst.Config.PortConfigs = append(inst.Config.PortConfigs, PortConfig{PortName: name})
			pc = &inst.Config.PortConfigs[len(inst.Config.PortConfigs)-1]
		}
		pc.Order = order
	}
	set(portA, ob)
	set(portB, oa)
	return nil
}

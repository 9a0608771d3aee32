package mcu

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/msgproto"
)

var (
	// ErrUnknownDependency is returned when a component depends on one that
	// was never registered.
	ErrUnknownDependency = errors.New("mcu: dependency not registered")

	// ErrDependencyCycle is returned when registered dependencies form a cycle.
	ErrDependencyCycle = errors.New("mcu: dependency cycle")
)

// Configurable is a component that contributes configuration commands.
type Configurable interface {
	BuildConfig() error
}

// Identifier is implemented by components that want a second pass once
// every component has built its configuration.
type Identifier interface {
	Identify() error
}

type component struct {
	c     Configurable
	after []Configurable
}

// Register adds c to the setup sequence. Setup builds c's configuration
// after every component listed in after; otherwise registration order is
// kept.
func (m *MCU) Register(c Configurable, after ...Configurable) error {
	if m.finalized {
		return ErrFinalized
	}
	for _, existing := range m.components {
		if existing.c == c {
			return fmt.Errorf("mcu %s: %T registered twice", m.name, c)
		}
	}
	m.components = append(m.components, &component{c: c, after: after})
	return nil
}

// order returns the components sorted so that every component follows its
// dependencies, keeping registration order where no dependency applies.
func (m *MCU) order() ([]Configurable, error) {
	index := make(map[Configurable]*component, len(m.components))
	for _, comp := range m.components {
		index[comp.c] = comp
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[Configurable]int, len(m.components))
	sorted := make([]Configurable, 0, len(m.components))

	var visit func(c Configurable) error
	visit = func(c Configurable) error {
		switch state[c] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w at %T", ErrDependencyCycle, c)
		}
		state[c] = visiting
		for _, dep := range index[c].after {
			if _, ok := index[dep]; !ok {
				return fmt.Errorf("%w: %T needs %T", ErrUnknownDependency, c, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[c] = done
		sorted = append(sorted, c)
		return nil
	}

	for _, comp := range m.components {
		if err := visit(comp.c); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// Setup runs the two-phase configuration. Phase one calls BuildConfig on
// every registered component in dependency order; phase two calls Identify
// on the components that implement it. The collected configuration is then
// resolved against the enumeration dictionary, checksummed and sent,
// followed by finalize_config.
func (m *MCU) Setup() error {
	if m.finalized {
		return ErrFinalized
	}

	components, err := m.order()
	if err != nil {
		return fmt.Errorf("mcu %s: %w", m.name, err)
	}
	for _, c := range components {
		if err := c.BuildConfig(); err != nil {
			return fmt.Errorf("mcu %s: config %T: %w", m.name, c, err)
		}
	}
	for _, c := range components {
		if id, ok := c.(Identifier); ok {
			if err := id.Identify(); err != nil {
				return fmt.Errorf("mcu %s: identify %T: %w", m.name, c, err)
			}
		}
	}

	resolved, err := m.resolveConfig()
	if err != nil {
		return err
	}
	m.crc = crc32.ChecksumIEEE([]byte(strings.Join(resolved, "\n")))
	m.logger.Info("sending config", "commands", len(resolved), "oids", m.nextOID, "crc", m.crc)

	for _, line := range resolved {
		if err := m.sender.Send(Message{Kind: KindConfig, Line: line}); err != nil {
			return fmt.Errorf("mcu %s: send config: %w", m.name, err)
		}
	}
	finalize := fmt.Sprintf("finalize_config crc=%d", m.crc)
	if err := m.sender.Send(Message{Kind: KindConfig, Line: finalize}); err != nil {
		return fmt.Errorf("mcu %s: send config: %w", m.name, err)
	}
	m.finalized = true
	return nil
}

// ResolvedConfig returns the configuration commands with every symbolic
// value replaced by its integer.
func (m *MCU) ResolvedConfig() ([]string, error) {
	return m.resolveConfig()
}

func (m *MCU) resolveConfig() ([]string, error) {
	out := make([]string, 0, len(m.configCmds))
	for _, cmd := range m.configCmds {
		l, err := msgproto.ParseLine(cmd)
		if err != nil {
			return nil, fmt.Errorf("mcu %s: %w", m.name, err)
		}
		r, err := m.dict.Resolve(l)
		if err != nil {
			return nil, fmt.Errorf("mcu %s: %w", m.name, err)
		}
		out = append(out, r.String())
	}
	return out, nil
}

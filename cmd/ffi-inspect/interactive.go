package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/manifest"
	"github.com/wippyai/wasm-ffi/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	opts     options
	logger   *zap.Logger
	man      *manifest.Manifest
	rt       *runtime.Runtime
	instance *runtime.Instance
	calls    []opCall
	inputs   []textinput.Model
	result   string
	selected int
	focusIdx int
	state    modelState
}

type loadedMsg struct {
	err   error
	rt    *runtime.Runtime
	inst  *runtime.Instance
	man   *manifest.Manifest
	calls []opCall
}

type callResultMsg struct {
	err    error
	result string
}

func newInteractiveModel(o options, logger *zap.Logger) *interactiveModel {
	return &interactiveModel{opts: o, logger: logger, state: stateSelectOp}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	ctx := context.Background()

	man, err := loadManifest(m.opts)
	if err != nil {
		return loadedMsg{err: err}
	}
	rt, err := newRuntime(ctx, m.opts, man, m.logger)
	if err != nil {
		return loadedMsg{err: err}
	}
	mod, err := rt.LoadFile(ctx, m.opts.wasmFile)
	if err != nil {
		_ = rt.Close(ctx)
		return loadedMsg{err: err}
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return loadedMsg{err: err}
	}

	var calls []opCall
	if man != nil {
		for _, op := range man.Operations {
			calls = append(calls, opCall{op: op})
		}
	} else {
		for _, name := range mod.Exports() {
			calls = append(calls, newCall(nil, name))
		}
	}
	return loadedMsg{rt: rt, inst: inst, man: man, calls: calls}
}

func (m *interactiveModel) close() {
	ctx := context.Background()
	if m.instance != nil {
		_ = m.instance.Close(ctx)
	}
	if m.rt != nil {
		_ = m.rt.Close(ctx)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.close()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.close()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(m.calls)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				if len(m.calls) == 0 {
					return m, nil
				}
				m.prepareInputs()
				m.state = stateInputArgs
				return m, textinput.Blink

			case stateInputArgs:
				return m, m.callSelected

			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.instance = msg.inst
		m.man = msg.man
		m.calls = msg.calls

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// prepareInputs adds one field per declared string argument and a final
// field for integer parameters.
func (m *interactiveModel) prepareInputs() {
	c := m.calls[m.selected]
	m.inputs = nil
	for _, a := range c.op.Args {
		ti := textinput.New()
		ti.Placeholder = a.TextEncoding().String()
		ti.Prompt = a.Name + ": "
		ti.Width = 40
		m.inputs = append(m.inputs, ti)
	}
	ints := textinput.New()
	ints.Placeholder = "1,2,3"
	ints.Prompt = "ints: "
	ints.Width = 40
	m.inputs = append(m.inputs, ints)

	m.focusIdx = 0
	m.inputs[0].Focus()
}

func (m *interactiveModel) callSelected() tea.Msg {
	if m.instance == nil {
		return callResultMsg{err: fmt.Errorf("module not loaded")}
	}
	c := m.calls[m.selected]

	texts := make([]string, 0, len(c.op.Args))
	for _, in := range m.inputs[:len(m.inputs)-1] {
		texts = append(texts, in.Value())
	}
	ints, err := parseInts(m.inputs[len(m.inputs)-1].Value())
	if err != nil {
		return callResultMsg{err: err}
	}

	result, err := c.run(context.Background(), m.instance.Bridge(), texts, ints)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: result}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.instance == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("FFI Inspect"))
	b.WriteString(" ")
	b.WriteString(m.opts.wasmFile)
	if m.man != nil {
		b.WriteString(" ")
		b.WriteString(typeStyle.Render("[" + m.man.Module + "]"))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, c := range m.calls {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + c.describe()))
			} else {
				b.WriteString("  " + opStyle.Render(c.describe()))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter choose • q quit"))

	case stateInputArgs:
		c := m.calls[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", opStyle.Render(c.op.Name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		c := m.calls[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", opStyle.Render(c.op.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(o options, logger *zap.Logger) error {
	p := tea.NewProgram(newInteractiveModel(o, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

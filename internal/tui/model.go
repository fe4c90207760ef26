// Package tui is the terminal storefront: a catalog view and a checkout view
// over one storefront.Session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"lessonshop/internal/domain"
	"lessonshop/internal/storefront"
)

type view int

const (
	viewCatalog view = iota
	viewCheckout
)

// checkout focus order; focusCart selects the cart list
const (
	focusCart = iota
	focusFirstName
	focusLastName
	focusAddress
	focusCity
	focusMethod
	focusPhone
	focusGift
	focusCount
)

var fieldLabels = [focusCount]string{"Cart", "First name", "Last name", "Address", "City", "Method", "Phone", "Gift"}

type catalogLoaded struct {
	err error
}

type submitResult struct {
	outcome storefront.Outcome
	err     error
}

// Model is the bubbletea model for the storefront.
type Model struct {
	session  *storefront.Session
	imageURL func(string) string

	view       view
	search     string
	searching  bool
	sortIdx    int
	dir        storefront.Direction
	cursor     int
	cartCursor int
	focus      int

	status string
	busy   bool
	// set once the shopper has been warned that resubmitting duplicates an order
	confirmDuplicate bool
}

// New builds a Model. imageURL resolves icon paths for display and may be nil.
func New(session *storefront.Session, imageURL func(string) string) Model {
	return Model{
		session:  session,
		imageURL: imageURL,
		dir:      storefront.Ascending,
		status:   "Loading lessons...",
		busy:     true,
	}
}

func (m Model) Init() tea.Cmd {
	return loadCmd(m.session)
}

func loadCmd(s *storefront.Session) tea.Cmd {
	return func() tea.Msg {
		return catalogLoaded{err: s.Load(context.Background())}
	}
}

func submitCmd(s *storefront.Session) tea.Cmd {
	return func() tea.Msg {
		out, err := s.Submit(context.Background())
		return submitResult{outcome: out, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.view == viewCheckout {
			return m.updateCheckout(msg)
		}
		return m.updateCatalog(msg)
	case catalogLoaded:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Could not load lessons: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("%d lessons loaded", len(m.session.Catalog().Lessons()))
		}
		m.clampCursor()
	case submitResult:
		m.busy = false
		m.applyOutcome(msg.outcome, msg.err)
	}
	return m, nil
}

func (m Model) updateCatalog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.searching {
		switch key {
		case "enter", "esc":
			m.searching = false
		case "backspace":
			m.search = dropLastRune(m.search)
		default:
			if r, ok := typed(msg); ok {
				m.search += r
			}
		}
		m.clampCursor()
		return m, nil
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "/":
		m.searching = true
	case "s":
		m.sortIdx = (m.sortIdx + 1) % len(storefront.SortFields)
	case "d":
		if m.dir == storefront.Ascending {
			m.dir = storefront.Descending
		} else {
			m.dir = storefront.Ascending
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.lessons())-1 {
			m.cursor++
		}
	case "a", "enter":
		lessons := m.lessons()
		if len(lessons) == 0 {
			return m, nil
		}
		l := lessons[m.cursor]
		if m.session.AddToCart(l.ID) {
			m.status = fmt.Sprintf("Added %s (%s) to cart", l.Subject, l.Location)
		} else {
			m.status = fmt.Sprintf("No spaces left for %s (%s)", l.Subject, l.Location)
		}
	case "c":
		if m.session.CartLen() == 0 {
			m.status = "Cart is empty"
			return m, nil
		}
		m.view = viewCheckout
		m.focus = focusCart
		m.cartCursor = 0
	case "r":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.status = "Loading lessons..."
		return m, loadCmd(m.session)
	}
	m.clampCursor()
	return m, nil
}

func (m Model) updateCheckout(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "esc":
		m.view = viewCatalog
		return m, nil
	case "tab", "down":
		m.focus = (m.focus + 1) % focusCount
		return m, nil
	case "shift+tab", "up":
		m.focus = (m.focus + focusCount - 1) % focusCount
		return m, nil
	case "ctrl+x":
		if err := m.session.Cancel(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.view = viewCatalog
		m.status = "Checkout cancelled"
		return m, nil
	case "enter":
		if m.busy {
			return m, nil
		}
		if m.session.RetryWouldDuplicate() && !m.confirmDuplicate {
			m.confirmDuplicate = true
			m.status = "This cart was already ordered. Press enter again to place a second order."
			return m, nil
		}
		m.confirmDuplicate = false
		m.busy = true
		m.status = "Submitting order..."
		return m, submitCmd(m.session)
	}

	if m.busy {
		return m, nil
	}
	switch m.focus {
	case focusCart:
		m.updateCart(key)
	case focusMethod:
		if key == " " || key == "left" || key == "right" {
			m.editForm(func(f *storefront.OrderForm) { f.Method = nextMethod(f.Method) })
		}
	case focusGift:
		if key == " " {
			m.editForm(func(f *storefront.OrderForm) { f.Gift = !f.Gift })
		}
	default:
		field := m.focus
		if key == "backspace" {
			m.editForm(func(f *storefront.OrderForm) { setText(f, field, dropLastRune(textOf(*f, field))) })
		} else if r, ok := typed(msg); ok {
			m.editForm(func(f *storefront.OrderForm) { setText(f, field, textOf(*f, field)+r) })
		}
	}
	return m, nil
}

func (m *Model) updateCart(key string) {
	n := m.session.CartLen()
	switch key {
	case "left", "h":
		if m.cartCursor > 0 {
			m.cartCursor--
		}
	case "right", "l":
		if m.cartCursor < n-1 {
			m.cartCursor++
		}
	case "x", "delete", "backspace":
		if err := m.session.RemoveFromCart(m.cartCursor); err != nil {
			m.status = err.Error()
			return
		}
		m.status = "Removed from cart"
		if m.cartCursor >= m.session.CartLen() && m.cartCursor > 0 {
			m.cartCursor--
		}
	}
}

func (m *Model) editForm(edit func(*storefront.OrderForm)) {
	if err := m.session.UpdateForm(edit); err != nil {
		m.status = err.Error()
	}
}

func (m *Model) applyOutcome(out storefront.Outcome, err error) {
	var verr *storefront.ValidationError
	switch {
	case errors.As(err, &verr):
		m.status = verr.Error()
		return
	case errors.Is(err, storefront.ErrSubmissionInProgress):
		m.status = err.Error()
		return
	}

	m.status = out.Message
	if out.State == storefront.StateCommitted {
		m.view = viewCatalog
		if out.RefreshErr != nil {
			m.status += " (lesson list could not be refreshed)"
		}
		m.clampCursor()
	}
}

func (m Model) lessons() []domain.Lesson {
	field := storefront.SortFields[m.sortIdx]
	return m.session.Catalog().View(m.search, field, m.dir)
}

func (m *Model) clampCursor() {
	n := len(m.lessons())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "After-school lessons")
	fmt.Fprintln(b, "")
	if m.view == viewCheckout {
		m.renderCheckout(b)
	} else {
		m.renderCatalog(b)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.session.RetryWouldDuplicate() {
		fmt.Fprintln(b, "Warning: this order was already placed. Submitting again creates a duplicate.")
	}
	return b.String()
}

func (m Model) renderCatalog(b *strings.Builder) {
	search := m.search
	if m.searching {
		search += "_"
	}
	fmt.Fprintf(b, "Search: %s   Sort: %s %s   Cart: %d\n\n", search, storefront.SortFields[m.sortIdx], m.dir, m.session.CartLen())
	lessons := m.lessons()
	if len(lessons) == 0 {
		fmt.Fprintln(b, "  no lessons")
	}
	for i, l := range lessons {
		marker := " "
		if i == m.cursor {
			marker = ">"
		}
		left := m.session.Remaining(l)
		avail := fmt.Sprintf("%d left", left)
		if left == 0 {
			avail = "full"
		}
		fmt.Fprintf(b, " %s %-12s %-12s %8s  %-7s", marker, l.Subject, l.Location, l.Price.StringFixed(2), avail)
		if m.imageURL != nil && l.Icon != "" {
			fmt.Fprintf(b, "  %s", m.imageURL(l.Icon))
		}
		fmt.Fprintln(b)
	}
	fmt.Fprintln(b, "\nControls: up/down select, a add, / search, s sort field, d direction, c checkout, r reload, q quit")
}

func (m Model) renderCheckout(b *strings.Builder) {
	items := m.session.CartItems()
	marker := func(f int) string {
		if m.focus == f {
			return ">"
		}
		return " "
	}
	fmt.Fprintf(b, "%s Cart (total %s)\n", marker(focusCart), m.session.CartTotal())
	for i, it := range items {
		sel := " "
		if m.focus == focusCart && i == m.cartCursor {
			sel = "*"
		}
		name := it.LessonID + " (no longer offered)"
		if it.Found {
			name = fmt.Sprintf("%s (%s) %s", it.Lesson.Subject, it.Lesson.Location, it.Lesson.Price.StringFixed(2))
		}
		fmt.Fprintf(b, "   %s %d. %s\n", sel, i+1, name)
	}
	fmt.Fprintln(b, "")

	form := m.session.Form()
	for f := focusFirstName; f < focusCount; f++ {
		var value string
		switch f {
		case focusMethod:
			value = form.Method
		case focusGift:
			value = "no"
			if form.Gift {
				value = "yes"
			}
		default:
			value = textOf(form, f)
		}
		fmt.Fprintf(b, "%s %-10s %s\n", marker(f), fieldLabels[f]+":", value)
	}

	var verr *storefront.ValidationError
	if err := m.session.Validate(); errors.As(err, &verr) {
		fmt.Fprintln(b, "")
		for _, fe := range verr.Fields {
			fmt.Fprintf(b, "  ! %s: %s\n", fe.Field, fe.Reason)
		}
	}
	fmt.Fprintln(b, "\nControls: tab/up/down move, type to edit, space toggle, left/right pick cart item, x remove, enter submit, ctrl+x cancel, esc back")
}

func nextMethod(current string) string {
	if current == domain.MethodDelivery {
		return domain.MethodPickup
	}
	return domain.MethodDelivery
}

func textOf(f storefront.OrderForm, field int) string {
	switch field {
	case focusFirstName:
		return f.FirstName
	case focusLastName:
		return f.LastName
	case focusAddress:
		return f.Address
	case focusCity:
		return f.City
	case focusPhone:
		return f.Phone
	}
	return ""
}

func setText(f *storefront.OrderForm, field int, v string) {
	switch field {
	case focusFirstName:
		f.FirstName = v
	case focusLastName:
		f.LastName = v
	case focusAddress:
		f.Address = v
	case focusCity:
		f.City = v
	case focusPhone:
		f.Phone = v
	}
}

// typed returns the text a key inserts, if any.
func typed(msg tea.KeyMsg) (string, bool) {
	switch msg.Type {
	case tea.KeyRunes:
		return string(msg.Runes), true
	case tea.KeySpace:
		return " ", true
	}
	return "", false
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}

package domain

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Contact represents a person record in the address book.
type Contact struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Color    string `json:"color,omitempty"`
	Password string `json:"password,omitempty"`
}

// contactColors is the palette new contacts are assigned from.
var contactColors = []string{
	"#FF7A00", "#FF5EB3", "#6E52FF", "#9327FF", "#00BEE8",
	"#1FD7C1", "#FF745E", "#FFA35E", "#FC71FF", "#FFC701",
	"#0038FF", "#C3FF2B", "#FFE62B", "#FF4646", "#FFBB2B",
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RandomColor picks a palette color for a contact that has none.
func RandomColor() string {
	return contactColors[rand.Intn(len(contactColors))]
}

// FieldErrors maps field names to human readable validation messages.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for name := range f {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Validate checks the contact form fields. A nil return means the contact
// is acceptable; otherwise every offending field is reported at once.
func (c Contact) Validate() FieldErrors {
	errs := FieldErrors{}
	if !validName(c.Name) {
		errs["name"] = "name must contain a first and last name"
	}
	if !emailPattern.MatchString(c.Email) {
		errs["email"] = "invalid email address"
	}
	if !validPhone(c.Phone) {
		errs["phone"] = "phone may only contain digits"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validName requires at least two words so list grouping and the
// two-letter avatar initials stay well defined.
func validName(name string) bool {
	return len(strings.Fields(name)) >= 2
}

// validPhone accepts digits with an optional leading + and interior
// spaces, matching what the contact form tolerated.
func validPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false
	}
	rest := strings.TrimPrefix(phone, "+")
	digits := 0
	for _, r := range rest {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ':
		default:
			return false
		}
	}
	return digits > 0
}

// Initials returns the upper-cased first letters of the first two words
// of the contact name, used for avatar badges.
func (c Contact) Initials() string {
	words := strings.Fields(c.Name)
	initials := ""
	for i, w := range words {
		if i == 2 {
			break
		}
		initials += strings.ToUpper(string([]rune(w)[0]))
	}
	return initials
}

// ContactGroup is one letter bucket of the grouped contact list.
type ContactGroup struct {
	Letter   string    `json:"letter"`
	Contacts []Contact `json:"contacts"`
}

// SortContacts orders contacts alphabetically by name, case-insensitive.
func SortContacts(contacts []Contact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
	})
}

// GroupByInitial buckets contacts by the first letter of their name. The
// result is sorted by letter with contacts sorted inside each bucket.
// Contacts with an empty name land in a "#" bucket at the end.
func GroupByInitial(contacts []Contact) []ContactGroup {
	sorted := append([]Contact(nil), contacts...)
	SortContacts(sorted)
	groups := []ContactGroup{}
	var leftover []Contact
	for _, c := range sorted {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			leftover = append(leftover, c)
			continue
		}
		letter := strings.ToUpper(string([]rune(name)[0]))
		if n := len(groups); n > 0 && groups[n-1].Letter == letter {
			groups[n-1].Contacts = append(groups[n-1].Contacts, c)
			continue
		}
		groups = append(groups, ContactGroup{Letter: letter, Contacts: []Contact{c}})
	}
	if len(leftover) > 0 {
		groups = append(groups, ContactGroup{Letter: "#", Contacts: leftover})
	}
	return groups
}

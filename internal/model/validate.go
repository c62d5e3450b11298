package model

import (
	"fmt"
	"regexp"
	"strings"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// ValidateName checks the common object-name grammar shared by every
// reconcilable kind: one or more alphanumerics, underscores or dashes.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("name %q must match ^[a-zA-Z0-9_-]+$", name)
	}
	return nil
}

// ValidateResourceKindName checks the "{domain}/{name}" grammar required of
// every ResourceKind and Resource.Kind reference.
func ValidateResourceKindName(kind string) (domain, name string, err error) {
	parts := strings.SplitN(kind, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("resource kind %q must be of the form {domain}/{name}", kind)
	}
	domain, name = parts[0], parts[1]
	if err := ValidateName(domain); err != nil {
		return "", "", fmt.Errorf("resource kind domain: %w", err)
	}
	if err := ValidateName(name); err != nil {
		return "", "", fmt.Errorf("resource kind name: %w", err)
	}
	return domain, name, nil
}

// NamespacedKey builds the "{name}.{namespace}" primary key shared by Cargo
// and Vm.
func NamespacedKey(name, namespace string) string {
	return fmt.Sprintf("%s.%s", name, namespace)
}

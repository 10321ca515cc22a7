package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Setter receives extracted values. *scope.Scope satisfies it.
type Setter interface {
	Set(name string, value any)
}

// Extract evaluates JSONPath rules ($.items[0].id, $.data[*].name) against a
// JSON body and stores each result under the rule's variable name. Values
// found before a failing rule are still stored.
func Extract(body []byte, rules map[string]string, into Setter) error {
	if len(rules) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return errors.New("response body is not valid JSON")
	}

	var errs []error
	for name, path := range rules {
		res := gjson.GetBytes(body, gjsonPath(path))
		if !res.Exists() {
			errs = append(errs, fmt.Errorf("path %q not found for variable %q", path, name))
			continue
		}
		into.Set(name, res.Value())
	}
	return errors.Join(errs...)
}

var (
	wildcardIndex = regexp.MustCompile(`\[\*\]`)
	numericIndex  = regexp.MustCompile(`\[(\d+)\]`)
)

// gjsonPath rewrites JSONPath into gjson syntax: $.a[0].b becomes a.0.b and
// $.a[*].b becomes a.#.b.
func gjsonPath(path string) string {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	path = wildcardIndex.ReplaceAllString(path, ".#")
	path = numericIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

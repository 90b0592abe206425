package grammar

import "strings"

// Resolve substitutes recorded choices into an output template: for each
// list name in subs the first occurrence of `{name}` is replaced with
// the chosen value, and for each rule name the first occurrence of
// `<name>` is replaced with the chosen expansion.
//
// Templates are expected to mention each placeholder at most once;
// additional occurrences are left untouched. Placeholders with no
// recorded choice also remain as written.
func Resolve(template string, subs Substitutions) string {
	for name, value := range subs.Lists {
		template = strings.Replace(template, "{"+name+"}", value, 1)
	}
	for name, value := range subs.Rules {
		template = strings.Replace(template, "<"+name+">", value, 1)
	}
	return template
}

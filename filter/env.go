package filter

import (
	"strconv"
	"strings"
)

/*
Here the Env used in the event target filters is defined.
Once this struct is fixed, it should not be changed, otherwise filters stored
in history events may not compile any more (f.e. if properties are renamed).
*/

type Room struct {
	Id string
}

type Source struct {
	Id string
}

type Target struct {
	Id   string
	Nick string
}

type Env struct {
	Room
	Source
	Target
	Name    string
	Created int64
	Tags    map[string]string

	AsInt         func(string) int64
	AsFloat       func(string) float64
	AsStringSlice func(string) []string
}

// AsInt parses the tag value as an int, 0 on error
func AsInt(v string) int64 {
	val, _ := strconv.ParseInt(v, 0, 64)
	return val
}

// AsFloat parses the tag value as a float64, 0.0 on error
func AsFloat(v string) float64 {
	val, _ := strconv.ParseFloat(v, 64)
	return val
}

// AsStringSlice parses the tag value as a comma-separated slice of strings
func AsStringSlice(v string) []string {
	return strings.Split(v, ",")
}

package data

import "sort"

//StringSet holds unique host identifiers
type StringSet map[string]struct{}

//NewStringSet creates a set holding the given strings
func NewStringSet(strs ...string) StringSet {
	set := make(StringSet, len(strs))
	for _, str := range strs {
		set.Insert(str)
	}
	return set
}

//Items returns the strings in the set as a slice.
func (s StringSet) Items() []string {
	retVal := make([]string, 0, len(s))
	for str := range s {
		retVal = append(retVal, str)
	}
	return retVal
}

//SortedItems returns the strings in the set as an ascending slice.
func (s StringSet) SortedItems() []string {
	retVal := s.Items()
	sort.Strings(retVal)
	return retVal
}

//Insert adds a string to the set
func (s StringSet) Insert(str string) {
	s[str] = struct{}{}
}

//Contains checks if a given string is in the set
func (s StringSet) Contains(str string) bool {
	_, ok := s[str]
	return ok
}

//Merge inserts every string of other into the set
func (s StringSet) Merge(other StringSet) {
	for str := range other {
		s[str] = struct{}{}
	}
}

//Copy returns an independent copy of the set
func (s StringSet) Copy() StringSet {
	retVal := make(StringSet, len(s))
	retVal.Merge(s)
	return retVal
}

package v1

// Action writes Value to the read-write variable Name of a device.
type Action struct {
	Name  string      `json:"name" binding:"required,min=1,max=64,excludesall=\u002F\u005C"`
	Value interface{} `json:"value" binding:"required"`
}

// Actions is the body of a control request.
type Actions []Action

// Values maps every variable name to the value of its first action. names keeps
// the request order, duplicates lists each name given more than once.
func (as Actions) Values() (values map[string]interface{}, names []string, duplicates []string) {
	values = make(map[string]interface{}, len(as))
	names = make([]string, 0, len(as))
	seen := make(map[string]int, len(as))
	for _, a := range as {
		seen[a.Name]++
		switch seen[a.Name] {
		case 1:
			values[a.Name] = a.Value
			names = append(names, a.Name)
		case 2:
			duplicates = append(duplicates, a.Name)
		}
	}
	return values, names, duplicates
}

package sql

type (
	// Query is a message that is sent to the database.
	Query interface {
		// Cmd is the injection-safe message to send to the database.
		Cmd() string
		// Args are the user-provided properties of the messages which should be escaped.
		Args() []interface{}
	}

	// Select is a Query that reads data.
	Select struct {
		cmd       string
		arguments []interface{}
	}

	// Update is a Query that must change exactly one row.
	Update struct {
		name      string
		cmd       string
		arguments []interface{}
	}

	// RawQuery is a db Query that changes data and has no arguments.
	RawQuery string
)

// NewSelect creates a Query that reads rows.
func NewSelect(cmd string, args ...interface{}) Select {
	s := Select{
		cmd:       cmd,
		arguments: args,
	}
	return s
}

// NewUpdate creates a named Query that changes one row.
func NewUpdate(name, cmd string, args ...interface{}) Update {
	u := Update{
		name:      name,
		cmd:       cmd,
		arguments: args,
	}
	return u
}

// Cmd returns the SQL string of the select.
func (s Select) Cmd() string {
	return s.cmd
}

// Cmd returns the SQL string of the update.
func (u Update) Cmd() string {
	return u.cmd
}

// Cmd returns the raw SQL query.
func (r RawQuery) Cmd() string {
	return string(r)
}

// Args returns the arguments for the select.
func (s Select) Args() []interface{} {
	return s.arguments
}

// Args returns the arguments for the update.
func (u Update) Args() []interface{} {
	return u.arguments
}

// Args returns nil for the raw SQL query.
func (RawQuery) Args() []interface{} {
	return nil
}

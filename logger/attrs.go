package logger

import "log/slog"

// Error records err under the key "error". A nil err yields an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}

	return slog.Any("error", err)
}

// Graph records a graph name.
func Graph(name string) slog.Attr {
	return slog.String("graph", name)
}

// State records a state name.
func State(name string) slog.Attr {
	return slog.String("state", name)
}

// MachineID records a machine ID.
func MachineID(id string) slog.Attr {
	return slog.String("machine_id", id)
}

package view

import (
	"io"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"gopkg.in/yaml.v3"
)

type exportDocument struct {
	Register     string          `yaml:"register"`
	ExportedAt   string          `yaml:"exported_at"`
	Appointments []exportedEntry `yaml:"appointments"`
}

type exportedEntry struct {
	Token     int64  `yaml:"token"`
	Name      string `yaml:"name"`
	Phone     string `yaml:"phone"`
	Date      string `yaml:"date"`
	Time      string `yaml:"time"`
	Approved  bool   `yaml:"approved"`
	CreatedAt string `yaml:"created_at,omitempty"`
}

// WriteExport encodes records as a YAML document.
func WriteExport(writer io.Writer, register string, exportedAt time.Time, records []appointments.Appointment) error {
	document := exportDocument{
		Register:     register,
		ExportedAt:   exportedAt.UTC().Format(time.RFC3339),
		Appointments: make([]exportedEntry, 0, len(records)),
	}
	for _, record := range records {
		entry := exportedEntry{
			Token:    record.Token.Int64(),
			Name:     record.Name,
			Phone:    record.Phone,
			Date:     record.Date,
			Time:     record.Time,
			Approved: record.Approved,
		}
		if record.CreatedAtSeconds > 0 {
			entry.CreatedAt = time.Unix(record.CreatedAtSeconds, 0).UTC().Format(time.RFC3339)
		}
		document.Appointments = append(document.Appointments, entry)
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(document); err != nil {
		return err
	}
	return encoder.Close()
}

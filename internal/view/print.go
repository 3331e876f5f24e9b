package view

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
)

const (
	printTitle     = "Appointment Register"
	printSeparator = "  "
)

var printHeader = []string{"Token", "Name", "Phone", "Date", "Time", "Approved"}

// WritePrintSheet renders records as a fixed-width printable sheet.
func WritePrintSheet(writer io.Writer, records []appointments.Appointment) error {
	cells := make([][]string, 0, len(records)+1)
	cells = append(cells, printHeader)
	approvedCount := 0
	for _, record := range records {
		approved := "no"
		if record.Approved {
			approved = "yes"
			approvedCount++
		}
		cells = append(cells, []string{
			strconv.FormatInt(record.Token.Int64(), 10),
			record.Name,
			record.Phone,
			record.Date,
			record.Time,
			approved,
		})
	}

	widths := make([]int, len(printHeader))
	for _, line := range cells {
		for column, cell := range line {
			if width := utf8.RuneCountInString(cell); width > widths[column] {
				widths[column] = width
			}
		}
	}

	buffered := bufio.NewWriter(writer)
	fmt.Fprintf(buffered, "%s\n\n", printTitle)
	writePrintLine(buffered, cells[0], widths)
	rule := make([]string, len(widths))
	for column, width := range widths {
		rule[column] = strings.Repeat("-", width)
	}
	writePrintLine(buffered, rule, widths)
	for _, line := range cells[1:] {
		writePrintLine(buffered, line, widths)
	}
	fmt.Fprintf(buffered, "\nTotal: %d  Approved: %d\n", len(records), approvedCount)
	return buffered.Flush()
}

func writePrintLine(writer *bufio.Writer, line []string, widths []int) {
	var builder strings.Builder
	for column, cell := range line {
		if column > 0 {
			builder.WriteString(printSeparator)
		}
		builder.WriteString(cell)
		builder.WriteString(strings.Repeat(" ", widths[column]-utf8.RuneCountInString(cell)))
	}
	writer.WriteString(strings.TrimRight(builder.String(), " "))
	writer.WriteByte('\n')
}

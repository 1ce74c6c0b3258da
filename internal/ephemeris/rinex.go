package ephemeris

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// recordLines is the number of lines in one RINEX 2 GPS navigation record.
const recordLines = 8

// Parse reads a RINEX 2 GPS navigation file. Records that fail to parse are
// skipped with a warning; the file as a whole is rejected with ErrDataFormat
// only when it yields no usable records at all. Unknown trailing fields
// (spare columns, fit interval) are tolerated.
func Parse(r io.Reader, logger *slog.Logger) ([]*Entry, error) {
	scanner := bufio.NewScanner(r)

	// Header: everything up to END OF HEADER. A missing header is tolerated,
	// some tooling strips it.
	var lines []string
	headerDone := false
	for scanner.Scan() {
		line := scanner.Text()
		if !headerDone {
			if label(line) == "END OF HEADER" {
				headerDone = true
				continue
			}
			if looksLikeHeader(line) {
				continue
			}
			headerDone = true
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading navigation file: %w", err)
	}

	var entries []*Entry
	for i := 0; i+recordLines <= len(lines); {
		entry, err := parseRecord(lines[i : i+recordLines])
		if err != nil {
			if logger != nil {
				logger.Warn("skipping unparsable navigation record",
					slog.Int("line", i), slog.String("error", err.Error()))
			}
			i++
			continue
		}
		entries = append(entries, entry)
		i += recordLines
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no usable navigation records", ErrDataFormat)
	}
	return entries, nil
}

// label returns the RINEX header label occupying columns 61-80.
func label(line string) string {
	if len(line) <= 60 {
		return ""
	}
	return strings.TrimSpace(line[60:])
}

func looksLikeHeader(line string) bool {
	switch label(line) {
	case "RINEX VERSION / TYPE", "PGM / RUN BY / DATE", "COMMENT",
		"ION ALPHA", "ION BETA", "DELTA-UTC: A0,A1,T,W", "LEAP SECONDS":
		return true
	}
	return false
}

func parseRecord(lines []string) (*Entry, error) {
	first := pad(lines[0])

	prn, err := strconv.Atoi(strings.TrimSpace(first[0:2]))
	if err != nil || prn < 1 || prn > 32 {
		return nil, fmt.Errorf("invalid PRN %q", strings.TrimSpace(first[0:2]))
	}

	toc, err := parseEpoch(first[2:22])
	if err != nil {
		return nil, fmt.Errorf("PRN %d: %w", prn, err)
	}

	e := Entry{PRN: prn, Toc: toc}
	if e.Af0, err = parseFloat(first[22:41]); err != nil {
		return nil, fmt.Errorf("PRN %d: %w", prn, err)
	}
	if e.Af1, err = parseFloat(first[41:60]); err != nil {
		return nil, fmt.Errorf("PRN %d: %w", prn, err)
	}
	if e.Af2, err = parseFloat(first[60:79]); err != nil {
		return nil, fmt.Errorf("PRN %d: %w", prn, err)
	}

	// Broadcast orbit lines 1-7: four 19-column fields after a 3-column pad.
	var v [recordLines - 1][4]float64
	for i := 1; i < recordLines; i++ {
		line := pad(lines[i])
		for j := 0; j < 4; j++ {
			v[i-1][j], err = parseFloat(line[3+j*19 : 3+(j+1)*19])
			if err != nil {
				return nil, fmt.Errorf("PRN %d orbit line %d: %w", prn, i, err)
			}
		}
	}

	e.Iode = int(v[0][0])
	e.Crs = v[0][1]
	e.DeltaN = v[0][2]
	e.M0 = v[0][3]

	e.Cuc = v[1][0]
	e.Ecc = v[1][1]
	e.Cus = v[1][2]
	e.SqrtA = v[1][3]

	e.Toe = v[2][0]
	e.Cic = v[2][1]
	e.Omega0 = v[2][2]
	e.Cis = v[2][3]

	e.I0 = v[3][0]
	e.Crc = v[3][1]
	e.Omega = v[3][2]
	e.OmegaDot = v[3][3]

	e.Idot = v[4][0]
	e.Week = int(v[4][2])

	e.Accuracy = v[5][0]
	e.Health = int(v[5][1])
	e.Tgd = v[5][2]
	e.Iodc = int(v[5][3])

	// Line 7 carries transmission time and fit interval; neither is needed
	// for propagation.

	if e.SqrtA <= 0 {
		return nil, fmt.Errorf("PRN %d: non-positive sqrt(A) %g", prn, e.SqrtA)
	}
	if e.Ecc < 0 || e.Ecc >= 1 {
		return nil, fmt.Errorf("PRN %d: eccentricity %g outside [0, 1)", prn, e.Ecc)
	}
	if e.Week <= 0 {
		return nil, fmt.Errorf("PRN %d: invalid GPS week %d", prn, e.Week)
	}

	return &e, nil
}

// parseEpoch reads the yy mm dd hh mm ss.s clock epoch of a record.
func parseEpoch(s string) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return time.Time{}, fmt.Errorf("invalid epoch %q", strings.TrimSpace(s))
	}

	var nums [5]int
	for i := 0; i < 5; i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch %q", strings.TrimSpace(s))
		}
		nums[i] = n
	}
	sec, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch seconds %q", fields[5])
	}

	// time.Date normalizes out-of-range components, so bound them here.
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 ||
		nums[3] < 0 || nums[3] > 23 || nums[4] < 0 || nums[4] > 59 {
		return time.Time{}, fmt.Errorf("invalid epoch %q", strings.TrimSpace(s))
	}

	year := nums[0]
	if year < 80 {
		year += 2000
	} else if year < 100 {
		year += 1900
	}

	return time.Date(year, time.Month(nums[1]), nums[2], nums[3], nums[4], 0, 0, time.UTC).
		Add(time.Duration(sec * float64(time.Second))), nil
}

// parseFloat reads a RINEX real, absorbing the FORTRAN D exponent marker.
// Blank fields read as zero, which matches how receivers treat spare columns;
// anything else must parse or the whole record is rejected.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.ContainsAny(s, "Dd") {
		s = strings.Replace(s, "D", "E", 1)
		s = strings.Replace(s, "d", "e", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric field %q", s)
	}
	return v, nil
}

// pad right-pads a line to the full RINEX record width so fixed-column
// slicing is safe on files with trailing whitespace stripped.
func pad(line string) string {
	const width = 80
	if len(line) >= width {
		return line
	}
	return line + strings.Repeat(" ", width-len(line))
}

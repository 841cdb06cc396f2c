package envi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// ErrNotENVI is returned when a header does not start with the ENVI magic line.
var ErrNotENVI = errors.New("not an ENVI header")

// Data type codes used by the "data type" header key.
var dataTypes = map[int]rasterio.PixelType{
	1:  rasterio.Byte,
	2:  rasterio.Int16,
	3:  rasterio.Int32,
	4:  rasterio.Float32,
	5:  rasterio.Float64,
	12: rasterio.UInt16,
	13: rasterio.UInt32,
	14: rasterio.Int64,
	15: rasterio.UInt64,
}

func dataTypeCode(pt rasterio.PixelType) (int, error) {
	for code, t := range dataTypes {
		if t == pt {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", rasterio.ErrUnsupportedPixelType, pt)
}

// Header is the parsed content of an ENVI .hdr file.
type Header struct {
	Samples      int
	Lines        int
	Bands        int
	HeaderOffset int64
	DataType     int
	Interleave   rasterio.Interleave
	BigEndian    bool
	Description  string
	MapInfo      []string
	CoordSystem  string

	// Other keys are preserved verbatim so a rewrite does not drop them.
	Other map[string]string
}

// PixelType maps the header data type code to a pixel type.
func (h *Header) PixelType() (rasterio.PixelType, error) {
	pt, ok := dataTypes[h.DataType]
	if !ok {
		return rasterio.Unknown, fmt.Errorf("%w: ENVI data type %d", rasterio.ErrUnsupportedPixelType, h.DataType)
	}
	return pt, nil
}

// Geometry returns the raster geometry described by the header.
func (h *Header) Geometry() (rasterio.Geometry, error) {
	pt, err := h.PixelType()
	if err != nil {
		return rasterio.Geometry{}, err
	}
	g := rasterio.Geometry{Width: h.Samples, Height: h.Lines, Bands: h.Bands, PixelType: pt}
	return g, g.Validate()
}

// GeoReference converts "map info" and "coordinate system string" into a
// geotransform and projection. Rotated map info is not supported.
func (h *Header) GeoReference() (rasterio.GeoReference, error) {
	ref := rasterio.GeoReference{Projection: h.CoordSystem}
	if len(h.MapInfo) == 0 {
		return ref, nil
	}
	if len(h.MapInfo) < 7 {
		return ref, fmt.Errorf("map info has %d fields, need at least 7", len(h.MapInfo))
	}
	var v [6]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(h.MapInfo[i+1]), 64)
		if err != nil {
			return ref, fmt.Errorf("map info field %d: %w", i+2, err)
		}
		v[i] = f
	}
	refX, refY, easting, northing, dx, dy := v[0], v[1], v[2], v[3], v[4], v[5]
	ref.Transform = [6]float64{
		easting - (refX-1)*dx, dx, 0,
		northing + (refY-1)*dy, 0, -dy,
	}
	ref.HasTransform = true
	return ref, nil
}

// SetGeoReference stores ref as "map info" and "coordinate system string".
func (h *Header) SetGeoReference(ref rasterio.GeoReference) {
	h.CoordSystem = ref.Projection
	if !ref.HasTransform {
		h.MapInfo = nil
		return
	}
	t := ref.Transform
	h.MapInfo = []string{
		"Arbitrary", "1", "1",
		formatFloat(t[0]), formatFloat(t[3]),
		formatFloat(t[1]), formatFloat(math.Abs(t[5])),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseHeader reads an ENVI header. Values enclosed in braces may span lines.
func ParseHeader(r io.Reader) (*Header, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "ENVI" {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotENVI
	}

	h := &Header{Other: make(map[string]string)}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "{") {
			for !strings.Contains(value, "}") && sc.Scan() {
				value += "\n" + sc.Text()
			}
			if !strings.Contains(value, "}") {
				return nil, fmt.Errorf("unterminated value for %q", key)
			}
			value = strings.TrimSpace(value[1:strings.LastIndex(value, "}")])
		}
		if err := h.set(key, value); err != nil {
			return nil, fmt.Errorf("header key %q: %w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if h.Samples <= 0 || h.Lines <= 0 || h.Bands <= 0 {
		return nil, fmt.Errorf("header lacks samples, lines or bands")
	}
	return h, nil
}

func (h *Header) set(key, value string) error {
	var err error
	switch key {
	case "samples":
		h.Samples, err = strconv.Atoi(value)
	case "lines":
		h.Lines, err = strconv.Atoi(value)
	case "bands":
		h.Bands, err = strconv.Atoi(value)
	case "header offset":
		h.HeaderOffset, err = strconv.ParseInt(value, 10, 64)
	case "data type":
		h.DataType, err = strconv.Atoi(value)
	case "interleave":
		h.Interleave, err = rasterio.ParseInterleave(value)
	case "byte order":
		var order int
		order, err = strconv.Atoi(value)
		h.BigEndian = order == 1
	case "description":
		h.Description = value
	case "map info":
		h.MapInfo = strings.Split(value, ",")
		for i := range h.MapInfo {
			h.MapInfo[i] = strings.TrimSpace(h.MapInfo[i])
		}
	case "coordinate system string":
		h.CoordSystem = value
	default:
		h.Other[key] = value
	}
	return err
}

// WriteTo writes the header in ENVI text form.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString("ENVI\n")
	if h.Description != "" {
		fmt.Fprintf(&b, "description = {%s}\n", h.Description)
	}
	fmt.Fprintf(&b, "samples = %d\n", h.Samples)
	fmt.Fprintf(&b, "lines = %d\n", h.Lines)
	fmt.Fprintf(&b, "bands = %d\n", h.Bands)
	fmt.Fprintf(&b, "header offset = %d\n", h.HeaderOffset)
	b.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", h.DataType)
	fmt.Fprintf(&b, "interleave = %s\n", h.Interleave)
	order := 0
	if h.BigEndian {
		order = 1
	}
	fmt.Fprintf(&b, "byte order = %d\n", order)
	if len(h.MapInfo) > 0 {
		fmt.Fprintf(&b, "map info = {%s}\n", strings.Join(h.MapInfo, ", "))
	}
	if h.CoordSystem != "" {
		fmt.Fprintf(&b, "coordinate system string = {%s}\n", h.CoordSystem)
	}
	keys := make([]string, 0, len(h.Other))
	for k := range h.Other {
		if k != "file type" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := h.Other[k]
		if strings.Contains(v, ",") || strings.Contains(v, "\n") {
			v = "{" + v + "}"
		}
		fmt.Fprintf(&b, "%s = %s\n", k, v)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

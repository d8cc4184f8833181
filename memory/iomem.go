package memory

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-errors/errors"

	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

const ramLabel = "System RAM"

// ParseIomem reads a /proc/iomem style listing and returns one region per
// top level "System RAM" line, in listing order. Store offsets are left
// unassigned; captures that pack the RAM ranges back to back get them from
// PackRegions.
func ParseIomem(r io.Reader) ([]types.MemRegion, *errors.Error) {
	var regions []types.MemRegion
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			// Children of a top level resource, like "Kernel code".
			continue
		}
		span, label, found := strings.Cut(line, " : ")
		if !found || strings.TrimSpace(label) != ramLabel {
			continue
		}
		first, last, found := strings.Cut(strings.TrimSpace(span), "-")
		if !found {
			return nil, errors.New(fmt.Sprintf("malformed iomem line %q", line))
		}
		start, err := strconv.ParseUint(first, 16, 64)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		end, err := strconv.ParseUint(last, 16, 64)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		if end < start {
			return nil, errors.New(fmt.Sprintf("iomem range ends before it starts: %q", line))
		}
		regions = append(regions, types.MemRegion{Start: types.Maddr(start), Size: end - start + 1})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return regions, nil
}

// PackRegions assigns store offsets as if the regions' bytes were written
// back to back in listing order, the layout RAM only capture tools
// produce. The input is not modified.
func PackRegions(regions []types.MemRegion) []types.MemRegion {
	packed := make([]types.MemRegion, len(regions))
	var off int64
	for i, r := range regions {
		r.Offset = off
		packed[i] = r
		off += int64(r.Size)
	}
	return packed
}

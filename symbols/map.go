package symbols

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-errors/errors"

	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// typeFromLetter maps the nm style type letters System.map uses.
func typeFromLetter(letter string) Type {
	switch strings.ToLower(letter) {
	case "t", "w":
		return Func
	case "d", "b", "r", "g", "s", "v", "a":
		return Data
	}
	return Unknown
}

// ParseMap reads a System.map style listing: one "address letter name"
// triple per line, addresses in bare hex. The format carries no sizes, so
// Size stays zero and Locate leans on the successor ordering alone.
func ParseMap(r io.Reader) (*Table, *errors.Error) {
	var syms []Symbol
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.New(fmt.Sprintf("malformed symbol line %q", line))
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		syms = append(syms, Symbol{
			Addr: types.Vaddr(addr),
			Name: fields[2],
			Type: typeFromLetter(fields[1]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return newTable(syms), nil
}

package link

import (
	"github.com/chazu/opgraph/pkg/op"
	"github.com/chazu/opgraph/pkg/program"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Verify decodes every entry of p and checks that each embedded address
// refers to an earlier entry of a kind the operand takes. It returns all
// problems found.
func Verify(p *program.Program) error {
	var result error
	for i := 0; i < p.Len(); i++ {
		addr := program.Address(i)
		in, err := op.Decode(p, addr)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "link: verify %s", addr))
			continue
		}
		for pos, o := range in.Operands {
			if !o.Address.IsValid() {
				continue
			}
			if o.Address >= addr {
				result = multierror.Append(result, errors.Errorf(
					"link: %s (%s) operand %s embeds %s, which does not precede it",
					addr, in.Kind, o.Name, o.Address))
				continue
			}
			opcode, _ := p.Opcode(o.Address)
			child, ok := op.KindOf(opcode)
			if ok && !op.AcceptsChild(in.Kind, pos, child) {
				result = multierror.Append(result, errors.Errorf(
					"link: %s (%s) operand %s embeds %s, a %s entry, want %s",
					addr, in.Kind, o.Name, o.Address, child, op.FormatKinds(op.Accepts(in.Kind, pos))))
			}
		}
	}
	return result
}

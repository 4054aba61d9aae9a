package rule

var _ Rule = (*Default)(nil)

type Default struct {
	Egress string
}

func NewRuleDefault(egress string) *Default {
	return &Default{Egress: egress}
}

func (d *Default) Name() string {
	return "DEFAULT"
}

func (d *Default) Match(*Metadata) (string, bool) {
	return d.Egress, true
}

func (d *Default) Insert(_, egress string) error {
	d.Egress = egress
	return nil
}

func (d *Default) Empty() bool {
	return false
}

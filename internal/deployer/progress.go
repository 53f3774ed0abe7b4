package deployer

// Progress reports the steps of a deploy or remove run to the operator.
type Progress interface {
	Start(message string)
	Succeed(message string)
	Fail(message string)
}

type nopProgress struct{}

func (nopProgress) Start(string)   {}
func (nopProgress) Succeed(string) {}
func (nopProgress) Fail(string)    {}

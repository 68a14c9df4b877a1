package ir

type FuncID int32
type BlockID int32
type LocalID int32
type ValueID int32

const (
	NoFuncID  FuncID  = -1
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
	NoValueID ValueID = -1
)

func (id FuncID) IsValid() bool  { return id >= 0 }
func (id BlockID) IsValid() bool { return id >= 0 }
func (id LocalID) IsValid() bool { return id >= 0 }
func (id ValueID) IsValid() bool { return id >= 0 }

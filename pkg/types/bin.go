package types

// Bin is a named, typed value inside a record.
type Bin struct {
	Name  string
	Value *Value
}

func NewBin(name string, value *Value) *Bin { return &Bin{Name: name, Value: value} }

// MaxBinNameLen mirrors the server's bin-name length limit. The client
// does not check names against it before sending; an over-long name is
// rejected by the server and surfaces as aerr.BinNameTooLong.
const MaxBinNameLen = 15

package channel

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// childFdOffset is the first descriptor number ExtraFiles are mapped to
// in the child, after stdin, stdout and stderr.
const childFdOffset = 3

var ErrInvalidEndpoint = errors.New("invalid endpoint")

// ParentEnd holds the supervisor side of a framed channel.
type ParentEnd struct {
	// Writer carries messages from the parent to the child.
	Writer *os.File

	// Reader carries messages from the child to the parent.
	Reader *os.File
}

// ChildEnd holds the worker side of a framed channel, before it
// is handed to the child process.
type ChildEnd struct {
	// Reader carries messages from the parent to the child.
	Reader *os.File

	// Writer carries messages from the child to the parent.
	Writer *os.File
}

// PipePair is a duplex framed channel built from two anonymous pipes.
type PipePair struct {
	Parent ParentEnd
	Child  ChildEnd
}

// NewPipePair allocates the parent->child and child->parent pipes.
func NewPipePair() (*PipePair, error) {
	p2cR, p2cW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating parent to child pipe: %w", err)
	}

	c2pR, c2pW, err := os.Pipe()
	if err != nil {
		p2cR.Close()
		p2cW.Close()
		return nil, fmt.Errorf("creating child to parent pipe: %w", err)
	}

	return &PipePair{
		Parent: ParentEnd{Writer: p2cW, Reader: c2pR},
		Child:  ChildEnd{Reader: p2cR, Writer: c2pW},
	}, nil
}

// ExtraFiles returns the child ends in the order they are passed
// to exec.Cmd.ExtraFiles.
func (p *PipePair) ExtraFiles() []*os.File {
	return []*os.File{p.Child.Reader, p.Child.Writer}
}

// EndpointIDs returns the identifiers the child uses to reopen its ends,
// matching the order of ExtraFiles.
func (p *PipePair) EndpointIDs() (parentToChild string, childToParent string) {
	return strconv.Itoa(childFdOffset), strconv.Itoa(childFdOffset + 1)
}

// CloseChild closes the parent's copies of the child ends. It must be
// called once the child is started, otherwise the parent keeps the
// child->parent pipe open and never observes EOF.
func (p *PipePair) CloseChild() error {
	return errors.Join(closeFile(p.Child.Reader), closeFile(p.Child.Writer))
}

// Close closes all ends still held by the parent.
func (p *PipePair) Close() error {
	return errors.Join(
		p.CloseChild(),
		closeFile(p.Parent.Writer),
		closeFile(p.Parent.Reader),
	)
}

// OpenEndpoint opens an inherited pipe end from its identifier.
func OpenEndpoint(id string, name string) (*os.File, error) {
	fd, err := strconv.Atoi(id)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, id)
	}

	// a non-blocking descriptor is registered with the runtime poller,
	// so closing the file interrupts a pending read
	if err := setNonblock(fd); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidEndpoint, id, err)
	}

	f := os.NewFile(uintptr(fd), name)
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, id)
	}

	// the descriptor must have been inherited
	if _, err := f.Stat(); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidEndpoint, id, err)
	}

	return f, nil
}

func closeFile(f *os.File) error {
	if f == nil {
		return nil
	}

	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}

	return nil
}

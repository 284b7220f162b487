package iio

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// sysfs attributes are at most a page long.
const maxAttributeSize = 4096

// readToken reads the first whitespace delimited token of a sysfs attribute file. The file is
// closed on every path; a close failure is combined with, never substituted for, an earlier error.
func readToken(path string) (_ string, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return "", newIOError("open", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = multierr.Combine(err, newIOError("close", path, closeErr))
		}
	}()

	buf, err := io.ReadAll(io.LimitReader(f, maxAttributeSize))
	if err != nil {
		return "", newIOError("read", path, err)
	}
	fields := strings.Fields(string(buf))
	if len(fields) == 0 {
		return "", errors.Wrapf(ErrParse, "%s: empty attribute", path)
	}
	return fields[0], nil
}

func numberError(path, token string, err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
		return errors.Wrapf(ErrOutOfRange, "%s: %q", path, token)
	}
	return errors.Wrapf(ErrParse, "%s: %q is not a number", path, token)
}

// ReadInt reads a decimal integer attribute.
func ReadInt(path string) (int, error) {
	token, err := readToken(path)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseInt(token, 10, strconv.IntSize)
	if err != nil {
		return 0, numberError(path, token, err)
	}
	return int(val), nil
}

// ReadInt32 reads a decimal integer attribute that must fit in 32 bits.
func ReadInt32(path string) (int32, error) {
	token, err := readToken(path)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return 0, numberError(path, token, err)
	}
	return int32(val), nil
}

// ReadUint reads an unsigned 32 bit attribute such as a channel index.
func ReadUint(path string) (uint32, error) {
	token, err := readToken(path)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, numberError(path, token, err)
	}
	return uint32(val), nil
}

// ReadFloat reads a floating point attribute such as a channel scale.
func ReadFloat(path string) (float64, error) {
	token, err := readToken(path)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, numberError(path, token, err)
	}
	return val, nil
}

// ReadString reads the first word of a string attribute.
func ReadString(path string) (string, error) {
	return readToken(path)
}

func writeAttribute(path, value string) (err error) {
	//nolint:gosec
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return newIOError("open", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = multierr.Combine(err, newIOError("close", path, closeErr))
		}
	}()

	if _, err := f.WriteString(value); err != nil {
		return newIOError("write", path, err)
	}
	return nil
}

// WriteInt writes a decimal integer attribute.
func WriteInt(path string, value int) error {
	return writeAttribute(path, strconv.Itoa(value))
}

// WriteString writes a string attribute.
func WriteString(path, value string) error {
	return writeAttribute(path, value)
}

// WriteIntAndVerify writes an integer attribute and reads it back.
func WriteIntAndVerify(path string, value int) error {
	if err := WriteInt(path, value); err != nil {
		return err
	}
	readBack, err := ReadInt(path)
	if err != nil {
		return err
	}
	if readBack != value {
		return errors.Wrapf(ErrVerificationMismatch, "%s: wrote %d, read back %d", path, value, readBack)
	}
	return nil
}

// WriteStringAndVerify writes a string attribute and reads it back.
func WriteStringAndVerify(path, value string) error {
	if err := WriteString(path, value); err != nil {
		return err
	}
	readBack, err := ReadString(path)
	if err != nil {
		return err
	}
	if readBack != value {
		return errors.Wrapf(ErrVerificationMismatch, "%s: wrote %q, read back %q", path, value, readBack)
	}
	return nil
}

package serial

const hexDigits = "0123456789ABCDEF"

// AppendDisplay appends the console rendering of frame to dst.
// CR and LF both become CRLF so raw output does not stair-step, bytes
// outside printable ASCII become a bracketed hex escape such as [07],
// everything else is copied as is.
//
// The mapping is not a round trip: rendering already rendered text
// expands every CRLF again.
func AppendDisplay(dst, frame []byte) []byte {
	for _, b := range frame {
		switch {
		case b == '\r' || b == '\n':
			dst = append(dst, '\r', '\n')
		case b < 32 || b > 126:
			dst = append(dst, '[', hexDigits[b>>4], hexDigits[b&0x0F], ']')
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// DeviceByte maps one typed byte to what the device receives.
// The target expects LF terminated commands, so CR is sent as LF.
func DeviceByte(b byte) byte {
	if b == '\r' {
		return '\n'
	}
	return b
}

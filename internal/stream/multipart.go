package stream

import "strconv"

// Boundary separates parts of the motion JPEG stream
const Boundary = "frame"

// ContentType is the response content type of the motion JPEG stream
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// AppendPart appends one JPEG part, boundary line first, to dst
func AppendPart(dst, jpeg []byte) []byte {
	dst = append(dst, "--"+Boundary+"\r\nContent-Type: image/jpeg\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(jpeg)), 10)
	dst = append(dst, "\r\n\r\n"...)
	dst = append(dst, jpeg...)
	return append(dst, "\r\n"...)
}

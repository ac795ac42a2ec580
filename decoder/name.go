package decoder

import (
	"strings"
)

// Name is a codec name in the ffmpeg naming ("h264", "mpeg4", "mjpeg", ...).
type Name string

const (
	NameMPEG4     = Name("mpeg4")
	NameMSMPEG4V1 = Name("msmpeg4v1")
	NameMSMPEG4V2 = Name("msmpeg4v2")
	NameMSMPEG4V3 = Name("msmpeg4")
	NameH263      = Name("h263")
	NameH263I     = Name("h263i")
	NameSVQ1      = Name("svq1")
	NameMJPEG     = Name("mjpeg")
	NameH264      = Name("h264")
	NameVP8       = Name("vp8")
)

var fourCCs = map[string]Name{
	"DIVX": NameMPEG4, "divx": NameMPEG4, "DX50": NameMPEG4, "XVID": NameMPEG4,
	"xvid": NameMPEG4, "mp4v": NameMPEG4, "MP4V": NameMPEG4, "4VXD": NameMPEG4,
	"MPG4": NameMSMPEG4V1, "mpg4": NameMSMPEG4V1,
	"MP42": NameMSMPEG4V2, "mp42": NameMSMPEG4V2,
	"MP43": NameMSMPEG4V3, "mp43": NameMSMPEG4V3, "DIV3": NameMSMPEG4V3, "div3": NameMSMPEG4V3,
	"DIV4": NameMSMPEG4V3, "DIV5": NameMSMPEG4V3, "DIV6": NameMSMPEG4V3,
	"H263": NameH263, "h263": NameH263, "U263": NameH263,
	"I263": NameH263I, "i263": NameH263I,
	"SVQ1": NameSVQ1,
	"MJPG": NameMJPEG, "mjpg": NameMJPEG, "mjpa": NameMJPEG, "jpeg": NameMJPEG, "JPEG": NameMJPEG,
	"H264": NameH264, "h264": NameH264, "avc1": NameH264, "AVC1": NameH264, "X264": NameH264,
	"VP80": NameVP8,
}

// CodecFromFourCC maps a container FourCC onto a codec name.
func CodecFromFourCC(fourCC string) (Name, bool) {
	name, ok := fourCCs[fourCC]
	return name, ok
}

func (n Name) Canonical() Name {
	return Name(strings.ToLower(strings.TrimSpace(string(n))))
}

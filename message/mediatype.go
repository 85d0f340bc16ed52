package message

import (
	"errors"
	"strconv"
)

// MediaType specifies the content format of a message.
type MediaType uint16

// Content formats.
const (
	TextPlain     MediaType = 0     // text/plain;charset=utf-8
	AppLinkFormat MediaType = 40    // application/link-format
	AppXML        MediaType = 41    // application/xml
	AppOctets     MediaType = 42    // application/octet-stream
	AppExi        MediaType = 47    // application/exi
	AppJSON       MediaType = 50    // application/json
	AppCBOR       MediaType = 60    // application/cbor (RFC 7049)
	AppSenmlJSON  MediaType = 110   // application/senml+json
	AppSenmlCBOR  MediaType = 112   // application/senml+cbor
	AppOcfCbor    MediaType = 10000 // application/vnd.ocf+cbor
)

var mediaTypeToString = map[MediaType]string{
	TextPlain:     "text/plain;charset=utf-8",
	AppLinkFormat: "application/link-format",
	AppXML:        "application/xml",
	AppOctets:     "application/octet-stream",
	AppExi:        "application/exi",
	AppJSON:       "application/json",
	AppCBOR:       "application/cbor",
	AppSenmlJSON:  "application/senml+json",
	AppSenmlCBOR:  "application/senml+cbor",
	AppOcfCbor:    "application/vnd.ocf+cbor",
}

// short names accepted on the command line
var shortMediaTypes = map[string]MediaType{
	"text":   TextPlain,
	"plain":  TextPlain,
	"link":   AppLinkFormat,
	"xml":    AppXML,
	"binary": AppOctets,
	"octets": AppOctets,
	"exi":    AppExi,
	"json":   AppJSON,
	"cbor":   AppCBOR,
}

func (c MediaType) String() string {
	str, ok := mediaTypeToString[c]
	if !ok {
		return "unknown media type: 0x" + strconv.FormatInt(int64(c), 16)
	}
	return str
}

// ToMediaType converts a media type name, a short alias or a decimal number to MediaType.
func ToMediaType(v string) (MediaType, error) {
	for key, val := range mediaTypeToString {
		if val == v {
			return key, nil
		}
	}
	if mt, ok := shortMediaTypes[v]; ok {
		return mt, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, errors.New("not found")
	}
	return MediaType(n), nil
}

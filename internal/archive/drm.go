package archive

import (
	"archive/zip"
	"encoding/xml"
)

const (
	encryptionFilePath = "META-INF/encryption.xml"
	// sinfFilePath only exists in Apple FairPlay protected books.
	sinfFilePath = "META-INF/sinf.xml"
)

// Font obfuscation is declared in encryption.xml too but is not DRM; the
// obfuscated fonts are copied through untouched.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true,
	"http://ns.adobe.com/pdf/enc#RC":     true,
}

type xmlEncryption struct {
	XMLName       xml.Name `xml:"encryption"`
	EncryptedData []struct {
		EncryptionMethod struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
	} `xml:"EncryptedData"`
}

// checkDRM returns ErrDRMProtected when the archive declares encryption of
// anything other than fonts.
func checkDRM(zr *zip.Reader, limit int64) error {
	if findFileInsensitive(zr, sinfFilePath) != nil {
		return ErrDRMProtected
	}
	f := findFileInsensitive(zr, encryptionFilePath)
	if f == nil {
		return nil
	}
	data, err := readZipFile(f, limit)
	if err != nil {
		return err
	}

	var enc xmlEncryption
	if err := xml.Unmarshal(stripBOM(data), &enc); err != nil {
		// Unreadable descriptors are treated as protection.
		return ErrDRMProtected
	}
	for _, ed := range enc.EncryptedData {
		if !fontObfuscationAlgorithms[ed.EncryptionMethod.Algorithm] {
			return ErrDRMProtected
		}
	}
	return nil
}

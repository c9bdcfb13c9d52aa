package routing

import (
	"path"
	"strings"
)

// DefaultMimeType is served for unknown extensions.
const DefaultMimeType = "application/octet-stream"

// mimeTypes maps a lower-case file extension, dot included, to its content type.
var mimeTypes = map[string]string{
	".aac":          "audio/aac",
	".abw":          "application/x-abiword",
	".appinstaller": "application/appinstaller",
	".appx":         "application/appx",
	".appxbundle":   "application/appxbundle",
	".arc":          "application/x-freearc",
	".asf":          "video/x-ms-asf",
	".asx":          "video/x-ms-asf",
	".avi":          "video/x-msvideo",
	".azw":          "application/vnd.amazon.ebook",
	".bin":          "application/octet-stream",
	".bmp":          "image/bmp",
	".bz":           "application/x-bzip",
	".bz2":          "application/x-bzip2",
	".cco":          "application/x-cocoa",
	".crt":          "application/x-x509-ca-cert",
	".csh":          "application/x-csh",
	".css":          "text/css",
	".csv":          "text/csv",
	".deb":          "application/octet-stream",
	".der":          "application/x-x509-ca-cert",
	".dll":          "application/octet-stream",
	".dmg":          "application/octet-stream",
	".doc":          "application/msword",
	".docx":         "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ear":          "application/java-archive",
	".eot":          "application/octet-stream",
	".epub":         "application/epub+zip",
	".exe":          "application/octet-stream",
	".flv":          "video/x-flv",
	".gif":          "image/gif",
	".gz":           "application/gzip",
	".hqx":          "application/mac-binhex40",
	".htc":          "text/x-component",
	".htm":          "text/html",
	".html":         "text/html",
	".ico":          "image/vnd.microsoft.icon",
	".ics":          "text/calendar",
	".img":          "application/octet-stream",
	".iso":          "application/octet-stream",
	".jar":          "application/java-archive",
	".jardiff":      "application/x-java-archive-diff",
	".jng":          "image/x-jng",
	".jnlp":         "application/x-java-jnlp-file",
	".jpeg":         "image/jpeg",
	".jpg":          "image/jpeg",
	".js":           "text/javascript",
	".vue":          "text/javascript",
	".json":         "application/json",
	".map":          "application/json",
	".jsonld":       "application/ld+json",
	".mid":          "audio/midi",
	".midi":         "audio/x-midi",
	".mjs":          "text/javascript",
	".mml":          "text/mathml",
	".mng":          "video/x-mng",
	".mov":          "video/quicktime",
	".mp3":          "audio/mpeg",
	".mpeg":         "video/mpeg",
	".mpg":          "video/mpeg",
	".mpkg":         "application/vnd.apple.installer+xml",
	".msi":          "application/octet-stream",
	".msix":         "application/msix",
	".msixbundle":   "application/msixbundle",
	".msm":          "application/octet-stream",
	".msp":          "application/octet-stream",
	".odp":          "application/vnd.oasis.opendocument.presentation",
	".ods":          "application/vnd.oasis.opendocument.spreadsheet",
	".odt":          "application/vnd.oasis.opendocument.text",
	".oga":          "audio/ogg",
	".ogv":          "video/ogg",
	".ogx":          "application/ogg",
	".opus":         "audio/opus",
	".otf":          "font/otf",
	".pdb":          "application/x-pilot",
	".pdf":          "application/pdf",
	".pem":          "application/x-x509-ca-cert",
	".php":          "application/php",
	".pl":           "application/x-perl",
	".pm":           "application/x-perl",
	".png":          "image/png",
	".ppt":          "application/vnd.ms-powerpoint",
	".pptx":         "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".prc":          "application/x-pilot",
	".ra":           "audio/x-realaudio",
	".rar":          "application/x-rar-compressed",
	".rpm":          "application/x-redhat-package-manager",
	".rss":          "text/xml",
	".rtf":          "application/rtf",
	".run":          "application/x-makeself",
	".sea":          "application/x-sea",
	".sh":           "application/x-sh",
	".shtml":        "text/html",
	".sit":          "application/x-stuffit",
	".svg":          "image/svg+xml",
	".swf":          "application/x-shockwave-flash",
	".tar":          "application/x-tar",
	".tcl":          "application/x-tcl",
	".tif":          "image/tiff",
	".tiff":         "image/tiff",
	".tk":           "application/x-tcl",
	".ts":           "video/mp2t",
	".ttf":          "font/ttf",
	".txt":          "text/plain",
	".vsd":          "application/vnd.visio",
	".war":          "application/java-archive",
	".wasm":         "application/wasm",
	".wav":          "audio/wav",
	".weba":         "audio/webm",
	".webm":         "video/webm",
	".webp":         "image/webp",
	".wbmp":         "image/vnd.wap.wbmp",
	".wmv":          "video/x-ms-wmv",
	".woff":         "font/woff",
	".woff2":        "font/woff2",
	".xhtml":        "application/xhtml+xml",
	".xls":          "application/vnd.ms-excel",
	".xlsx":         "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xml":          "text/xml",
	".xpi":          "application/x-xpinstall",
	".xul":          "application/vnd.mozilla.xul+xml",
	".zip":          "application/zip",
	".3gp":          "video/3gpp",
	".3g2":          "video/3gpp2",
	".7z":           "application/x-7z-compressed",
}

// ResolveMimeType returns the content type for p. An entry in overrides for
// the file extension wins over the built-in table.
func ResolveMimeType(p string, overrides map[string]string) string {
	ext := path.Ext(p)
	if ext == "" {
		return DefaultMimeType
	}
	if v, ok := overrides[ext]; ok && v != "" {
		return v
	}
	if v, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return v
	}
	return DefaultMimeType
}

package mimetypes

// 由 Python 3.11.7 mimetypes 的内置表（types、common types、encodings、suffix）生成，
// 另补充 3.11 缺少的常见 Web 类型：字体、Office Open XML、yaml、ogg、flac 等.

// typesMap 标准扩展名映射.
var typesMap = map[string]string{
	".epub":        "application/epub+zip",
	".js":          "application/javascript",
	".mjs":         "application/javascript",
	".json":        "application/json",
	".map":         "application/json",
	".jsonld":      "application/ld+json",
	".webmanifest": "application/manifest+json",
	".doc":         "application/msword",
	".dot":         "application/msword",
	".wiz":         "application/msword",
	".nq":          "application/n-quads",
	".nt":          "application/n-triples",
	".a":           "application/octet-stream",
	".bin":         "application/octet-stream",
	".dll":         "application/octet-stream",
	".exe":         "application/octet-stream",
	".o":           "application/octet-stream",
	".obj":         "application/octet-stream",
	".so":          "application/octet-stream",
	".oda":         "application/oda",
	".pdf":         "application/pdf",
	".p7c":         "application/pkcs7-mime",
	".ai":          "application/postscript",
	".eps":         "application/postscript",
	".ps":          "application/postscript",
	".trig":        "application/trig",
	".m3u":         "application/vnd.apple.mpegurl",
	".m3u8":        "application/vnd.apple.mpegurl",
	".xlb":         "application/vnd.ms-excel",
	".xls":         "application/vnd.ms-excel",
	".pot":         "application/vnd.ms-powerpoint",
	".ppa":         "application/vnd.ms-powerpoint",
	".pps":         "application/vnd.ms-powerpoint",
	".ppt":         "application/vnd.ms-powerpoint",
	".pwz":         "application/vnd.ms-powerpoint",
	".pptx":        "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx":        "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".docx":        "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".rar":         "application/vnd.rar",
	".wasm":        "application/wasm",
	".7z":          "application/x-7z-compressed",
	".bcpio":       "application/x-bcpio",
	".cpio":        "application/x-cpio",
	".csh":         "application/x-csh",
	".dvi":         "application/x-dvi",
	".gtar":        "application/x-gtar",
	".hdf":         "application/x-hdf",
	".h5":          "application/x-hdf5",
	".latex":       "application/x-latex",
	".mif":         "application/x-mif",
	".cdf":         "application/x-netcdf",
	".nc":          "application/x-netcdf",
	".p12":         "application/x-pkcs12",
	".pfx":         "application/x-pkcs12",
	".ram":         "application/x-pn-realaudio",
	".pyc":         "application/x-python-code",
	".pyo":         "application/x-python-code",
	".sh":          "application/x-sh",
	".shar":        "application/x-shar",
	".swf":         "application/x-shockwave-flash",
	".sv4cpio":     "application/x-sv4cpio",
	".sv4crc":      "application/x-sv4crc",
	".tar":         "application/x-tar",
	".tcl":         "application/x-tcl",
	".tex":         "application/x-tex",
	".texi":        "application/x-texinfo",
	".texinfo":     "application/x-texinfo",
	".roff":        "application/x-troff",
	".t":           "application/x-troff",
	".tr":          "application/x-troff",
	".man":         "application/x-troff-man",
	".me":          "application/x-troff-me",
	".ms":          "application/x-troff-ms",
	".ustar":       "application/x-ustar",
	".src":         "application/x-wais-source",
	".rdf":         "application/xml",
	".wsdl":        "application/xml",
	".xpdl":        "application/xml",
	".xsl":         "application/xml",
	".yaml":        "application/yaml",
	".yml":         "application/yaml",
	".zip":         "application/zip",
	".3gp":         "audio/3gpp",
	".3gpp":        "audio/3gpp",
	".3g2":         "audio/3gpp2",
	".3gpp2":       "audio/3gpp2",
	".aac":         "audio/aac",
	".adts":        "audio/aac",
	".ass":         "audio/aac",
	".loas":        "audio/aac",
	".au":          "audio/basic",
	".snd":         "audio/basic",
	".flac":        "audio/flac",
	".m4a":         "audio/mp4",
	".mp2":         "audio/mpeg",
	".mp3":         "audio/mpeg",
	".oga":         "audio/ogg",
	".ogg":         "audio/ogg",
	".opus":        "audio/opus",
	".weba":        "audio/webm",
	".aif":         "audio/x-aiff",
	".aifc":        "audio/x-aiff",
	".aiff":        "audio/x-aiff",
	".ra":          "audio/x-pn-realaudio",
	".wav":         "audio/x-wav",
	".otf":         "font/otf",
	".ttf":         "font/ttf",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".apng":        "image/apng",
	".avif":        "image/avif",
	".bmp":         "image/bmp",
	".gif":         "image/gif",
	".heic":        "image/heic",
	".heif":        "image/heif",
	".ief":         "image/ief",
	".jpe":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".jpg":         "image/jpeg",
	".png":         "image/png",
	".svg":         "image/svg+xml",
	".tif":         "image/tiff",
	".tiff":        "image/tiff",
	".ico":         "image/vnd.microsoft.icon",
	".ras":         "image/x-cmu-raster",
	".pnm":         "image/x-portable-anymap",
	".pbm":         "image/x-portable-bitmap",
	".pgm":         "image/x-portable-graymap",
	".ppm":         "image/x-portable-pixmap",
	".rgb":         "image/x-rgb",
	".xbm":         "image/x-xbitmap",
	".xpm":         "image/x-xpixmap",
	".xwd":         "image/x-xwindowdump",
	".eml":         "message/rfc822",
	".mht":         "message/rfc822",
	".mhtml":       "message/rfc822",
	".nws":         "message/rfc822",
	".ics":         "text/calendar",
	".css":         "text/css",
	".csv":         "text/csv",
	".htm":         "text/html",
	".html":        "text/html",
	".n3":          "text/n3",
	".bat":         "text/plain",
	".c":           "text/plain",
	".h":           "text/plain",
	".ksh":         "text/plain",
	".pl":          "text/plain",
	".srt":         "text/plain",
	".txt":         "text/plain",
	".rtx":         "text/richtext",
	".tsv":         "text/tab-separated-values",
	".vtt":         "text/vtt",
	".py":          "text/x-python",
	".etx":         "text/x-setext",
	".sgm":         "text/x-sgml",
	".sgml":        "text/x-sgml",
	".vcf":         "text/x-vcard",
	".xml":         "text/xml",
	".mp4":         "video/mp4",
	".m1v":         "video/mpeg",
	".mpa":         "video/mpeg",
	".mpe":         "video/mpeg",
	".mpeg":        "video/mpeg",
	".mpg":         "video/mpeg",
	".ogv":         "video/ogg",
	".mov":         "video/quicktime",
	".qt":          "video/quicktime",
	".webm":        "video/webm",
	".mkv":         "video/x-matroska",
	".avi":         "video/x-msvideo",
	".movie":       "video/x-sgi-movie",
}

// commonTypesMap 常见但非标准的映射，仅在标准表未命中时使用.
var commonTypesMap = map[string]string{
	".rtf":  "application/rtf",
	".mid":  "audio/midi",
	".midi": "audio/midi",
	".jpg":  "image/jpg",
	".pct":  "image/pict",
	".pic":  "image/pict",
	".pict": "image/pict",
	".webp": "image/webp",
	".xul":  "text/xul",
}

// encodingsMap 压缩后缀到 Content-Encoding 的映射，区分大小写.
var encodingsMap = map[string]string{
	".br":  "br",
	".bz2": "bzip2",
	".Z":   "compress",
	".gz":  "gzip",
	".xz":  "xz",
}

// suffixMap 复合后缀别名.
var suffixMap = map[string]string{
	".svgz": ".svg.gz",
	".tbz2": ".tar.bz2",
	".taz":  ".tar.gz",
	".tgz":  ".tar.gz",
	".tz":   ".tar.gz",
	".txz":  ".tar.xz",
}

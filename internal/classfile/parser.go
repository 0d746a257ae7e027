package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(r io.Reader) (*ClassFile, error) {
	cf := &ClassFile{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, formatErrorf("reading magic number", err)
	}
	if magic != classMagic {
		return nil, formatErrorf(fmt.Sprintf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic), nil)
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, formatErrorf("reading minor version", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, formatErrorf("reading major version", err)
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, formatErrorf("reading constant pool count", err)
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, formatErrorf("reading access flags", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, formatErrorf("reading this_class", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, formatErrorf("reading super_class", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, formatErrorf("reading interfaces count", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := uint16(0); i < interfacesCount; i++ {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading interface %d", i), err)
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, formatErrorf("reading fields count", err)
	}
	cf.Fields, err = parseFields(r, cf.ConstantPool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, formatErrorf("reading methods count", err)
	}
	cf.Methods, err = parseMethods(r, cf.ConstantPool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

func parseFields(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading field %d access flags", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading field %d name index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading field %d descriptor index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading field %d attributes count", i), err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d name: %w", i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d attributes: %w", i, err)
		}

		f := FieldInfo{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}

		for _, attr := range attrs {
			if attr.Name == "ConstantValue" {
				cv, err := parseConstantValueAttribute(pool, attr.Data, desc)
				if err != nil {
					return nil, fmt.Errorf("parsing ConstantValue for field %s: %w", name, err)
				}
				f.ConstantValue = cv
			}
		}

		fields[i] = f
	}
	return fields, nil
}

func parseConstantValueAttribute(pool []ConstantPoolEntry, data []byte, descriptor string) (*ConstantValue, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("ConstantValue attribute too short")
	}
	idx := uint16(data[0])<<8 | uint16(data[1])
	if int(idx) >= len(pool) || pool[idx] == nil {
		return nil, fmt.Errorf("invalid ConstantValue index %d", idx)
	}
	switch entry := pool[idx].(type) {
	case *ConstantInteger:
		return &ConstantValue{Kind: 'I', Int: entry.Value}, nil
	case *ConstantLong:
		return &ConstantValue{Kind: 'J', Long: entry.Value}, nil
	case *ConstantFloat:
		return &ConstantValue{Kind: 'F', Float: entry.Value}, nil
	case *ConstantDouble:
		return &ConstantValue{Kind: 'D', Double: entry.Value}, nil
	case *ConstantString:
		s, err := GetUtf8(pool, entry.StringIndex)
		if err != nil {
			return nil, err
		}
		return &ConstantValue{Kind: 'S', String: s}, nil
	default:
		return nil, fmt.Errorf("unexpected ConstantValue tag %d", pool[idx].Tag())
	}
}

func parseMethods(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading method %d access flags", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading method %d name index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading method %d descriptor index", i), err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading method %d attributes count", i), err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing method %d attributes: %w", i, err)
		}

		m := MethodInfo{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}

		for _, attr := range attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(pool, attr.Data)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
				}
				m.Code = code
				break
			}
		}

		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading attribute %d name index", i), err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading attribute %d length", i), err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, formatErrorf(fmt.Sprintf("reading attribute %d data", i), err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}

		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(pool []ConstantPoolEntry, data []byte) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}

	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	if len(data) < 8+int(codeLength) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}

	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])

	offset := 8 + int(codeLength)
	var handlers []ExceptionHandler
	if offset+2 <= len(data) {
		exTableLen := binary.BigEndian.Uint16(data[offset : offset+2])
		offset += 2
		handlers = make([]ExceptionHandler, exTableLen)
		for i := uint16(0); i < exTableLen; i++ {
			if offset+8 > len(data) {
				break
			}
			handlers[i] = ExceptionHandler{
				StartPC:   binary.BigEndian.Uint16(data[offset : offset+2]),
				EndPC:     binary.BigEndian.Uint16(data[offset+2 : offset+4]),
				HandlerPC: binary.BigEndian.Uint16(data[offset+4 : offset+6]),
				CatchType: binary.BigEndian.Uint16(data[offset+6 : offset+8]),
			}
			offset += 8
		}
	}

	var lineNumbers []LineNumberEntry
	if offset+2 <= len(data) {
		attrCount := binary.BigEndian.Uint16(data[offset : offset+2])
		offset += 2
		for i := uint16(0); i < attrCount; i++ {
			if offset+6 > len(data) {
				break
			}
			nameIndex := binary.BigEndian.Uint16(data[offset : offset+2])
			length := binary.BigEndian.Uint32(data[offset+2 : offset+6])
			offset += 6
			body := data[offset:min(offset+int(length), len(data))]
			offset += int(length)

			name, err := GetUtf8(pool, nameIndex)
			if err != nil {
				continue
			}
			if name == "LineNumberTable" {
				lineNumbers = parseLineNumberTable(body)
			}
		}
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
		LineNumbers:       lineNumbers,
	}, nil
}

func parseLineNumberTable(data []byte) []LineNumberEntry {
	if len(data) < 2 {
		return nil
	}
	count := binary.BigEndian.Uint16(data[0:2])
	entries := make([]LineNumberEntry, 0, count)
	offset := 2
	for i := uint16(0); i < count && offset+4 <= len(data); i++ {
		entries = append(entries, LineNumberEntry{
			StartPC:    binary.BigEndian.Uint16(data[offset : offset+2]),
			LineNumber: binary.BigEndian.Uint16(data[offset+2 : offset+4]),
		})
		offset += 4
	}
	return entries
}

func (cf *ClassFile) parseClassAttributes(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return formatErrorf("reading class attributes count", err)
	}
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return formatErrorf(fmt.Sprintf("reading class attribute %d name index", i), err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return formatErrorf(fmt.Sprintf("reading class attribute %d length", i), err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return formatErrorf(fmt.Sprintf("reading class attribute %d data", i), err)
		}
		name, err := GetUtf8(cf.ConstantPool, nameIndex)
		if err != nil {
			continue // skip unresolvable attribute names rather than fail the whole class
		}
		if name == "BootstrapMethods" {
			cf.BootstrapMethods, err = parseBootstrapMethods(data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods data too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := uint16(0); i < numMethods; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := uint16(0); j < numArgs; j++ {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("BootstrapMethods truncated at arg %d of method %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

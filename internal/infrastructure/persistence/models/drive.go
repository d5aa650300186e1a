package models

import (
	"github.com/erp/gestao/internal/domain/drive"
	"github.com/google/uuid"
)

// DriveFileModel is the GORM model for drive.arquivos
type DriveFileModel struct {
	TenantModel
	Nome         string     `gorm:"column:nome;type:varchar(255);not null"`
	Pasta        string     `gorm:"column:pasta;type:varchar(500);not null;default:'/';index"`
	TipoConteudo string     `gorm:"column:tipo_conteudo;type:varchar(255);not null"`
	Tamanho      int64      `gorm:"column:tamanho;not null"`
	Checksum     string     `gorm:"column:checksum;type:char(64)"`
	ChaveStorage string     `gorm:"column:chave_storage;type:varchar(500);not null;uniqueIndex"`
	EnviadoPor   *uuid.UUID `gorm:"column:enviado_por;type:uuid"`
}

// TableName returns the table name for DriveFileModel
func (DriveFileModel) TableName() string {
	return "drive.arquivos"
}

// ToDomain converts DriveFileModel to the domain File
func (m *DriveFileModel) ToDomain() *drive.File {
	return &drive.File{
		TenantEntity: m.TenantModel.ToDomain(),
		Name:         m.Nome,
		Folder:       m.Pasta,
		ContentType:  m.TipoConteudo,
		Size:         m.Tamanho,
		Checksum:     m.Checksum,
		StorageKey:   m.ChaveStorage,
		UploadedBy:   m.EnviadoPor,
	}
}

// DriveFileModelFromDomain creates a DriveFileModel from the domain File
func DriveFileModelFromDomain(f *drive.File) *DriveFileModel {
	m := &DriveFileModel{
		Nome:         f.Name,
		Pasta:        f.Folder,
		TipoConteudo: f.ContentType,
		Tamanho:      f.Size,
		Checksum:     f.Checksum,
		ChaveStorage: f.StorageKey,
		EnviadoPor:   f.UploadedBy,
	}
	m.FromDomainTenantEntity(f.TenantEntity)
	return m
}
